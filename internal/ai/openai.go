package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIModel calls an OpenAI-compatible chat completions endpoint with a
// vision message.
type OpenAIModel struct {
	api   *openai.Client
	model string
}

// NewOpenAIModel constructs the client; an empty API key disables it.
func NewOpenAIModel(cfg Config) (*OpenAIModel, error) {
	cfg = cfg.WithDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrDisabled)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIModel{
		api:   openai.NewClientWithConfig(clientCfg),
		model: cfg.Model,
	}, nil
}

func (m *OpenAIModel) Name() string {
	if m == nil {
		return ProviderNone
	}
	return ProviderOpenAI + ":" + m.model
}

func (m *OpenAIModel) Enabled() bool {
	return m != nil && m.api != nil
}

// Generate sends the prompt and the image as a data URI part.
func (m *OpenAIModel) Generate(ctx context.Context, req Request) (Reply, error) {
	if !m.Enabled() {
		return Reply{}, ErrDisabled
	}

	// temperature is omitempty on the wire; a tiny positive value keeps an
	// explicit zero from falling back to the provider default.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	dataURI := "data:" + req.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	chatReq := openai.ChatCompletionRequest{
		Model:       m.model,
		Temperature: temperature,
		MaxTokens:   int(req.MaxOutputTokens),
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	resp, err := m.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Reply{}, fmt.Errorf("openai request: %w", err)
	}

	reply := Reply{Model: resp.Model, Raw: resp}
	if reply.Model == "" {
		reply.Model = m.model
	}
	if len(resp.Choices) > 0 {
		reply.Text = strings.TrimSpace(resp.Choices[0].Message.Content)
		reply.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return reply, nil
}
