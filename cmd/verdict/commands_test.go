package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"post-or-nah/backend/internal/ai"
	"post-or-nah/backend/internal/config"
)

type cannedModel struct {
	text string
}

func (m cannedModel) Name() string  { return "canned:test" }
func (m cannedModel) Enabled() bool { return true }
func (m cannedModel) Generate(context.Context, ai.Request) (ai.Reply, error) {
	return ai.Reply{Text: m.text, Model: "canned-1", Raw: map[string]any{"ok": true}}, nil
}

// 1x1 transparent PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func withModel(t *testing.T, model ai.Model) {
	t.Helper()
	prev := buildModel
	buildModel = func(context.Context, *config.Config) ai.Model { return model }
	t.Cleanup(func() { buildModel = prev })
}

func isolatedConfig(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("MODEL_PROVIDER", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  provider: none\nlog_level: error\n"), 0o644))
	return path
}

func TestAnalyzeCommand(t *testing.T) {
	withModel(t, cannedModel{text: `{"verdict":"TWEAK IT","comment":"crop tighter","reasons":["busy background"],"score":6}`})
	cfgPath := isolatedConfig(t)
	img := filepath.Join(t.TempDir(), "selfie.png")
	require.NoError(t, os.WriteFile(img, tinyPNG, 0o644))

	out, err := run(t, "analyze", img, "--vibe", "classy", "--config", cfgPath)
	require.NoError(t, err)

	var got analyzeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Equal(t, "Tweak ✏️", got.Verdict)
	require.Equal(t, "crop tighter", got.Suggestion)
	require.Equal(t, "Classy core", got.Vibe)
	require.Equal(t, "model", got.Source)
	require.NotNil(t, got.Score)
	require.Equal(t, 6, *got.Score)
	require.Nil(t, got.Raw)
}

func TestAnalyzeCommandWithoutModel(t *testing.T) {
	withModel(t, ai.Disabled)
	cfgPath := isolatedConfig(t)
	img := filepath.Join(t.TempDir(), "selfie.png")
	require.NoError(t, os.WriteFile(img, tinyPNG, 0o644))

	out, err := run(t, "analyze", img, "--config", cfgPath, "--raw")
	require.NoError(t, err)
	var got analyzeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Equal(t, "Error ⚠️", got.Verdict)
	require.True(t, got.Degraded)
	require.NotNil(t, got.Raw)
}

func TestAnalyzeCommandRejectsNonImages(t *testing.T) {
	withModel(t, cannedModel{text: "post"})
	cfgPath := isolatedConfig(t)
	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("just text"), 0o644))

	_, err := run(t, "analyze", file, "--config", cfgPath)
	require.Error(t, err)

	_, err = run(t, "analyze", filepath.Join(t.TempDir(), "missing.png"), "--config", cfgPath)
	require.Error(t, err)

	_, err = run(t, "analyze", "--config", cfgPath)
	require.Error(t, err)
}

func TestVibesCommand(t *testing.T) {
	out, err := run(t, "vibes")
	require.NoError(t, err)
	require.Contains(t, out, "KEY")
	require.Contains(t, out, "badBihVibe")
	require.Contains(t, out, "baddie")
	require.Contains(t, out, "Matcha core")
}
