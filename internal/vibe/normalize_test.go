package vibe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Key
	}{
		{"empty", "", General},
		{"garbage", "xyz123", General},
		{"only symbols", "!!! 123 ???", General},
		{"baddie", "Baddie", BadBihVibe},
		{"upper bad bih", "BADBIHVIBE", BadBihVibe},
		{"spaced label", "Bad bih vibe", BadBihVibe},
		{"rizz label", "Rizz core", RizzCore},
		{"aesthetic core", "aesthetic-core", Aesthetic},
		{"classy", "  Classy Core ", ClassyCore},
		{"matcha emoji", "Matcha core 🍵", MatchaCore},
		{"comma list first match", "Nope, Matcha core, Rizz core", MatchaCore},
		{"comma list no match", "foo, bar", General},
		{"no partial match", "rizzy", General},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeIsIdempotentOnKeys(t *testing.T) {
	for _, key := range All {
		require.Equal(t, key, Normalize(string(key)), "key %s", key)
		require.Equal(t, key, Normalize(key.Label()), "label %s", key.Label())
	}
}

func TestPromptCoversEveryKey(t *testing.T) {
	seen := map[string]Key{}
	for _, key := range All {
		prompt := key.Prompt()
		require.True(t, key.Valid())
		require.Contains(t, prompt, "GLOBAL CALIBRATION")
		require.Contains(t, prompt, `"verdict": "POST IT" | "TWEAK IT" | "NAH"`)
		require.Contains(t, prompt, "reasons")
		if other, dup := seen[prompt]; dup {
			t.Fatalf("%s and %s share a prompt", key, other)
		}
		seen[prompt] = key
	}
}

func TestPromptUnknownKeyUsesGeneral(t *testing.T) {
	unknown := Key("weird")
	require.False(t, unknown.Valid())
	require.Equal(t, General.Prompt(), unknown.Prompt())
	require.Equal(t, "General", unknown.Label())
}

func TestAliases(t *testing.T) {
	aliases := BadBihVibe.Aliases()
	require.Contains(t, aliases, "baddie")
	for i := 1; i < len(aliases); i++ {
		require.Less(t, aliases[i-1], aliases[i])
	}
}
