package verdict

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Source records which branch of the parser produced a Verdict.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
	SourceFallback  Source = "fallback"
	SourceError     Source = "error"
)

const (
	maxReasons     = 4
	maxScore       = 10
	fallbackPostP  = 0.7
	reasonMaxRunes = 120
)

// Verdict is the canonical outcome of one photo review.
type Verdict struct {
	Label   Label    `json:"label"`
	Comment string   `json:"comment"`
	Reasons []string `json:"reasons"`
	Score   *int     `json:"score,omitempty"`
	Source  Source   `json:"source"`
}

// Degraded reports whether the verdict was synthesized without model analysis.
func (v Verdict) Degraded() bool {
	return v.Source == SourceFallback || v.Source == SourceError
}

var positiveWords = []string{
	"good", "nice", "aesthetic", "beautiful", "great", "amazing",
	"stylish", "cute", "stunning", "fire", "lit",
}

var fallbackSuggestions = map[Label][]string{
	Post: {
		"Looks great, go ahead and post it!",
		"Nice shot, this one is feed-ready.",
		"Good vibes all around, share it.",
		"Solid pick, your followers will like this one.",
	},
	Nah: {
		"Maybe try a different angle.",
		"The lighting could be better, try another shot.",
		"Not quite there yet, retake and try again.",
		"Skip this one, you have better in your camera roll.",
	},
}

var defaultComments = map[Label]string{
	Post:  "Looks good, post it.",
	Tweak: "Almost there, a small fix and it's ready.",
	Nah:   "Not this one, try another shot.",
}

// Parser interprets raw model replies. The zero value is not usable; call
// NewParser or NewSeededParser.
type Parser struct {
	float func() float64
	intN  func(int) int
}

// NewParser returns a parser backed by the global random source. It is safe
// for concurrent use.
func NewParser() *Parser {
	return &Parser{float: rand.Float64, intN: rand.IntN}
}

// NewSeededParser returns a deterministic parser for tests and tooling.
// It is not safe for concurrent use.
func NewSeededParser(seed uint64) *Parser {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return &Parser{float: r.Float64, intN: r.IntN}
}

// Parse turns raw model text into a Verdict and never fails. An empty reply
// yields a randomized placeholder tagged SourceFallback.
func (p *Parser) Parse(raw string) Verdict {
	text := StripFences(raw)
	if text == "" {
		return p.Fallback()
	}

	if obj, ok := ExtractObject(text); ok {
		if v, ok := parseStructured(obj, text); ok {
			return v
		}
	}

	return Verdict{
		Label:   heuristicLabel(text),
		Comment: text,
		Reasons: []string{},
		Source:  SourceHeuristic,
	}
}

// Fallback synthesizes a placeholder verdict: roughly 70% Post, 30% Nah, with
// a suggestion drawn from the matching canned list.
func (p *Parser) Fallback() Verdict {
	label := Nah
	if p.float() < fallbackPostP {
		label = Post
	}
	options := fallbackSuggestions[label]
	return Verdict{
		Label:   label,
		Comment: options[p.intN(len(options))],
		Reasons: []string{},
		Source:  SourceFallback,
	}
}

// ErrorVerdict builds the terminal verdict for a failed model call.
func ErrorVerdict(diagnostic string) Verdict {
	diagnostic = strings.TrimSpace(diagnostic)
	if diagnostic == "" {
		diagnostic = "We couldn't review this photo right now. Please try again."
	}
	return Verdict{Label: Error, Comment: diagnostic, Reasons: []string{}, Source: SourceError}
}

func parseStructured(obj, text string) (Verdict, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return Verdict{}, false
	}
	lowered := make(map[string]any, len(fields))
	for k, v := range fields {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	rawVerdict, hasVerdict := lowered["verdict"]
	rawComment, hasComment := lowered["comment"]
	if !hasVerdict && !hasComment {
		return Verdict{}, false
	}

	comment := strings.TrimSpace(stringify(rawComment))
	label := MapToUI(stringify(rawVerdict))
	if !label.Canonical() || label == Error {
		// An unusable verdict field still leaves the comment worth keeping.
		hint := comment
		if hint == "" {
			hint = text
		}
		label = heuristicLabel(hint)
	}
	if comment == "" {
		comment = defaultComments[label]
	}

	return Verdict{
		Label:   label,
		Comment: comment,
		Reasons: reasons(lowered["reasons"]),
		Score:   score(lowered["score"]),
		Source:  SourceModel,
	}, true
}

// heuristicLabel applies keyword precedence: "nah" anywhere beats "post".
func heuristicLabel(text string) Label {
	lower := strings.ToLower(text)
	hasPost := strings.Contains(lower, "post")
	hasNah := strings.Contains(lower, "nah")
	switch {
	case hasPost && !hasNah:
		return Post
	case hasNah:
		return Nah
	}
	for _, word := range positiveWords {
		if strings.Contains(lower, word) {
			return Post
		}
	}
	return Nah
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func reasons(value any) []string {
	out := []string{}
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case string:
		items = []any{v}
	default:
		return out
	}
	for _, item := range items {
		reason := truncateRunes(strings.TrimSpace(stringify(item)), reasonMaxRunes)
		if reason == "" {
			continue
		}
		out = append(out, reason)
		if len(out) == maxReasons {
			break
		}
	}
	return out
}

func score(value any) *int {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "/10")), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	val := clampInt(int(math.Round(f)), 0, maxScore)
	return &val
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
