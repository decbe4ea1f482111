package vibe

import (
	"regexp"
	"sort"
	"strings"
)

// Key is a canonical vibe category. Values are only produced by Normalize
// or taken from the exported constants.
type Key string

const (
	General    Key = "general"
	Aesthetic  Key = "aesthetic"
	ClassyCore Key = "classyCore"
	RizzCore   Key = "rizzCore"
	MatchaCore Key = "matchaCore"
	BadBihVibe Key = "badBihVibe"
)

// All lists the canonical keys in display order.
var All = []Key{General, Aesthetic, ClassyCore, RizzCore, MatchaCore, BadBihVibe}

var nonLetter = regexp.MustCompile(`[^a-z]`)

// aliases maps a letters-only, lower-cased label to its canonical key.
var aliases = map[string]Key{
	"general":       General,
	"generalcore":   General,
	"default":       General,
	"aesthetic":     Aesthetic,
	"aesthetics":    Aesthetic,
	"aestheticcore": Aesthetic,
	"classy":        ClassyCore,
	"classycore":    ClassyCore,
	"rizz":          RizzCore,
	"rizzcore":      RizzCore,
	"matcha":        MatchaCore,
	"matchacore":    MatchaCore,
	"badbih":        BadBihVibe,
	"badbihvibe":    BadBihVibe,
	"badbihcore":    BadBihVibe,
	"baddie":        BadBihVibe,
	"baddievibe":    BadBihVibe,
}

var labels = map[Key]string{
	General:    "General",
	Aesthetic:  "Aesthetic core",
	ClassyCore: "Classy core",
	RizzCore:   "Rizz core",
	MatchaCore: "Matcha core",
	BadBihVibe: "Bad bih vibe",
}

// Normalize maps a free-text category to a canonical key. The whole input is
// tried first; a comma-joined list of UI labels is then tried segment by
// segment and the first recognized segment wins. Anything else is General.
func Normalize(input string) Key {
	if key, ok := lookup(input); ok {
		return key
	}
	if strings.Contains(input, ",") {
		for _, segment := range strings.Split(input, ",") {
			if key, ok := lookup(segment); ok {
				return key
			}
		}
	}
	return General
}

func lookup(label string) (Key, bool) {
	folded := nonLetter.ReplaceAllString(strings.ToLower(label), "")
	if folded == "" {
		return "", false
	}
	key, ok := aliases[folded]
	return key, ok
}

// Valid reports whether k is one of the canonical keys.
func (k Key) Valid() bool {
	_, ok := labels[k]
	return ok
}

// Label returns the display label shown in the category picker.
func (k Key) Label() string {
	if label, ok := labels[k]; ok {
		return label
	}
	return labels[General]
}

// Aliases returns the folded aliases that resolve to k, sorted.
func (k Key) Aliases() []string {
	var out []string
	for alias, key := range aliases {
		if key == k {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}
