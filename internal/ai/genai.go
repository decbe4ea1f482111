package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIModel calls Gemini through Vertex AI or the Gemini API.
type GenAIModel struct {
	client   *genai.Client
	model    string
	provider string
}

// NewGenAIModel builds a client for the vertex or gemini provider. Vertex uses
// application default credentials and requires a project.
func NewGenAIModel(ctx context.Context, cfg Config) (*GenAIModel, error) {
	cfg = cfg.WithDefaults()
	clientCfg := &genai.ClientConfig{}
	switch cfg.Provider {
	case ProviderVertex:
		if cfg.Project == "" {
			return nil, fmt.Errorf("%w: vertex project not set", ErrDisabled)
		}
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini api key not set", ErrDisabled)
		}
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = cfg.APIKey
	default:
		return nil, fmt.Errorf("genai: unsupported provider %q", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIModel{client: client, model: cfg.Model, provider: cfg.Provider}, nil
}

// Name identifies the provider and model, e.g. "vertex:gemini-2.0-flash".
func (m *GenAIModel) Name() string {
	if m == nil {
		return ProviderNone
	}
	return m.provider + ":" + m.model
}

// Enabled reports whether the client can make outbound calls.
func (m *GenAIModel) Enabled() bool {
	return m != nil && m.client != nil
}

// Generate sends the prompt and inline image in a single user turn.
func (m *GenAIModel) Generate(ctx context.Context, req Request) (Reply, error) {
	if !m.Enabled() {
		return Reply{}, ErrDisabled
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: req.Prompt},
				{InlineData: &genai.Blob{
					MIMEType: req.MIMEType,
					Data:     req.Image,
				}},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature:     ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, config)
	if err != nil {
		return Reply{}, fmt.Errorf("genai generate: %w", err)
	}
	if resp == nil {
		return Reply{}, errors.New("genai nil response")
	}

	// Zero candidates (e.g. a safety block) is an empty reply, not a failure.
	reply := Reply{
		Text:  extractResponseText(resp),
		Model: m.model,
		Raw:   resp,
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		reply.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	return reply, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func ptr[T any](v T) *T {
	return &v
}
