package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Model is a hosted multimodal model that reviews one image per call.
type Model interface {
	Name() string
	Enabled() bool
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Request is a single image + prompt generation call.
type Request struct {
	Image           []byte
	MIMEType        string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int32
}

// Reply carries the model text plus the provider response for diagnostics.
type Reply struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Raw          any    `json:"raw,omitempty"`
}

// Supported providers.
const (
	ProviderVertex = "vertex"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config holds model provider configuration.
type Config struct {
	Provider string
	Project  string
	Location string
	APIKey   string
	Model    string
	BaseURL  string
}

var ErrDisabled = errors.New("ai model disabled")

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultLocation    = "us-central1"
)

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderVertex
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		if c.Provider == ProviderOpenAI {
			c.Model = defaultOpenAIModel
		} else {
			c.Model = defaultGeminiModel
		}
	}
	c.Location = strings.TrimSpace(c.Location)
	if c.Location == "" {
		c.Location = defaultLocation
	}
	c.Project = strings.TrimSpace(c.Project)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	return c
}

// New constructs the model for cfg.Provider. It returns an error wrapping
// ErrDisabled when the provider is "none" or credentials are missing.
func New(ctx context.Context, cfg Config) (Model, error) {
	cfg = cfg.WithDefaults()
	switch cfg.Provider {
	case ProviderVertex, ProviderGemini:
		return NewGenAIModel(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIModel(cfg)
	case ProviderNone:
		return nil, fmt.Errorf("%w: provider set to none", ErrDisabled)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
