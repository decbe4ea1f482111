package verdict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFencedJSON(t *testing.T) {
	p := NewSeededParser(1)
	raw := "```json\n{\"verdict\":\"NAH\",\"comment\":\"too dark\",\"reasons\":[\"bad lighting\"]}\n```"

	got := p.Parse(raw)

	require.Equal(t, Nah, got.Label)
	require.Equal(t, "too dark", got.Comment)
	require.Equal(t, []string{"bad lighting"}, got.Reasons)
	require.Equal(t, SourceModel, got.Source)
	require.False(t, got.Degraded())
}

func TestParseStructuredVariants(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantLabel   Label
		wantComment string
		wantReasons []string
		wantScore   *int
	}{
		{
			name:        "post it with score",
			raw:         `{"verdict":"POST IT","comment":"  confident pose ","reasons":["good lighting","strong eye contact"],"score":8}`,
			wantLabel:   Post,
			wantComment: "confident pose",
			wantReasons: []string{"good lighting", "strong eye contact"},
			wantScore:   intPtr(8),
		},
		{
			name:        "tweak with prose around",
			raw:         "Sure! Here you go: {\"verdict\":\"TWEAK IT\",\"comment\":\"crop the left\"} hope it helps",
			wantLabel:   Tweak,
			wantComment: "crop the left",
			wantReasons: []string{},
		},
		{
			name:        "braces inside comment",
			raw:         `{"verdict":"NAH","comment":"needs less {clutter} } here","reasons":[]}`,
			wantLabel:   Nah,
			wantComment: "needs less {clutter} } here",
			wantReasons: []string{},
		},
		{
			name:        "score clamped",
			raw:         `{"verdict":"post it","comment":"wow","score":14.2}`,
			wantLabel:   Post,
			wantComment: "wow",
			wantReasons: []string{},
			wantScore:   intPtr(10),
		},
		{
			name:        "reasons capped at four",
			raw:         `{"verdict":"POST IT","comment":"ok","reasons":["a","b","","c","d","e"]}`,
			wantLabel:   Post,
			wantComment: "ok",
			wantReasons: []string{"a", "b", "c", "d"},
		},
		{
			name:        "verdict only gets a default comment",
			raw:         `{"verdict":"TWEAK IT"}`,
			wantLabel:   Tweak,
			wantComment: defaultComments[Tweak],
			wantReasons: []string{},
		},
		{
			name:        "unknown verdict falls back to comment keywords",
			raw:         `{"verdict":"MAYBE","comment":"honestly nah"}`,
			wantLabel:   Nah,
			wantComment: "honestly nah",
			wantReasons: []string{},
		},
		{
			name:        "upper case keys",
			raw:         `{"Verdict":"POST IT","Comment":"clean"}`,
			wantLabel:   Post,
			wantComment: "clean",
			wantReasons: []string{},
		},
	}
	p := NewSeededParser(2)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse(tc.raw)
			require.Equal(t, tc.wantLabel, got.Label)
			require.Equal(t, tc.wantComment, got.Comment)
			require.Equal(t, tc.wantReasons, got.Reasons)
			require.Equal(t, tc.wantScore, got.Score)
			require.Equal(t, SourceModel, got.Source)
		})
	}
}

func TestParseHeuristics(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Label
	}{
		{"nah overrides post", "This is post-worthy but honestly nah, skip it", Nah},
		{"positive word", "Absolutely stunning, so cute!", Post},
		{"post mention", "You should post this one", Post},
		{"nothing positive", "The horizon is crooked and it is blurry.", Nah},
		{"json without usable fields", `{"foo":"bar"} looks nice`, Post},
		{"broken json", `{"verdict": "POST IT", "comment": }`, Post},
	}
	p := NewSeededParser(3)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Parse(tc.raw)
			require.Equal(t, tc.want, got.Label)
			require.Equal(t, SourceHeuristic, got.Source)
			require.NotEmpty(t, got.Comment)
			require.Empty(t, got.Reasons)
		})
	}
}

func TestParseEmptyUsesFallback(t *testing.T) {
	p := NewSeededParser(4)
	for _, raw := range []string{"", "   ", "```\n```"} {
		got := p.Parse(raw)
		require.Equal(t, SourceFallback, got.Source, "raw %q", raw)
		require.True(t, got.Degraded())
	}
}

func TestFallbackDistribution(t *testing.T) {
	p := NewSeededParser(42)
	allowed := map[Label]map[string]bool{Post: {}, Nah: {}}
	for label, list := range fallbackSuggestions {
		for _, s := range list {
			allowed[label][s] = true
		}
	}

	const runs = 1000
	posts := 0
	for i := 0; i < runs; i++ {
		v := p.Fallback()
		require.Contains(t, []Label{Post, Nah}, v.Label)
		require.NotEmpty(t, v.Comment)
		require.True(t, allowed[v.Label][v.Comment], "unexpected suggestion %q for %s", v.Comment, v.Label)
		if v.Label == Post {
			posts++
		}
	}
	ratio := float64(posts) / runs
	require.InDelta(t, 0.7, ratio, 0.10)
}

func TestErrorVerdict(t *testing.T) {
	v := ErrorVerdict("  ")
	require.Equal(t, Error, v.Label)
	require.NotEmpty(t, v.Comment)
	require.True(t, v.Degraded())

	v = ErrorVerdict("Service not configured.")
	require.Equal(t, "Service not configured.", v.Comment)
}

func TestTotality(t *testing.T) {
	inputs := []string{
		"", "{", "}", "{}", "null", "```json```", `{"verdict":null,"comment":null}`,
		"🔥🔥🔥", "nah", "POST", `{"comment":"meh"}`, "[1,2,3]",
	}
	p := NewSeededParser(9)
	for _, raw := range inputs {
		v := p.Parse(raw)
		require.True(t, v.Label.Canonical(), "raw %q label %q", raw, v.Label)
		require.NotEmpty(t, v.Comment, "raw %q", raw)
		require.NotNil(t, v.Reasons, "raw %q", raw)
	}
}

func intPtr(v int) *int { return &v }
