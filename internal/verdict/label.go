package verdict

import "strings"

// Label is the user-facing verdict label.
type Label string

const (
	Post  Label = "Post ✅"
	Tweak Label = "Tweak ✏️"
	Nah   Label = "Nah ❌"
	Error Label = "Error ⚠️"
)

// Canonical reports whether l is one of the four display labels.
func (l Label) Canonical() bool {
	switch l {
	case Post, Tweak, Nah, Error:
		return true
	}
	return false
}

// MapToUI translates a model verdict ("POST IT", "TWEAK IT", "NAH", any case)
// to its display label. Exact phrases win; otherwise any mention of "post"
// maps to Post, then "nah" to Nah, then "tweak" to Tweak. Anything else is
// returned unchanged.
func MapToUI(raw string) Label {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "post it", "post", "postit", "post_it":
		return Post
	case "tweak it", "tweak", "tweakit", "tweak_it":
		return Tweak
	case "nah":
		return Nah
	}
	switch {
	case strings.Contains(normalized, "post"):
		return Post
	case strings.Contains(normalized, "nah"):
		return Nah
	case strings.Contains(normalized, "tweak"):
		return Tweak
	}
	return Label(raw)
}
