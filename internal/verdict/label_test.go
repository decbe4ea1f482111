package verdict

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapToUI(t *testing.T) {
	tests := []struct {
		in   string
		want Label
	}{
		{"post it", Post},
		{"POST", Post},
		{"Post! 👍", Post},
		{"POST IT", Post},
		{"TWEAK IT", Tweak},
		{" tweak ", Tweak},
		{"needs a tweak", Tweak},
		{"NAH", Nah},
		{"nah fam", Nah},
		{"MAYBE", "MAYBE"},
		{"", ""},
		{string(Post), Post},
		{string(Error), Error},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			require.Equal(t, tc.want, MapToUI(tc.in))
		})
	}
}

func TestCanonical(t *testing.T) {
	for _, l := range []Label{Post, Tweak, Nah, Error} {
		require.True(t, l.Canonical())
	}
	require.False(t, Label("MAYBE").Canonical())
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"nested", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"c":"}{"}`, `{"c":"}{"}`, true},
		{"escaped quote", `{"c":"say \"hi}\""}`, `{"c":"say \"hi}\""}`, true},
		{"first object wins", `{"a":1} and {"b":2}`, `{"a":1}`, true},
		{"skips invalid prefix", `{oops} {"a":1}`, `{"a":1}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"none", "no json here", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.text)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
		"```JSON {\"a\":1}```":    `{"a":1}`,
		"  plain text  ":          "plain text",
		"```\nhello\n```":         "hello",
	}
	for in, want := range tests {
		require.Equal(t, want, StripFences(in), "input %q", in)
	}
}
