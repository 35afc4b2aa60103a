package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"spritebot/model"
)

// OpenAIProvider implements model.Provider on the official OpenAI Go SDK.
// xAI exposes an OpenAI-compatible API, so the same type serves Grok with
// a different base URL.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	baseURL string
	name    string
}

// NewOpenAIProvider creates a provider for api.openai.com (or any
// compatible endpoint when baseURL is set).
//
// Parameters:
//   - baseURL: API base URL (default: "https://api.openai.com/v1")
//   - apiKey: API key (required)
//   - model: model to use (default: "gpt-4o-mini")
func NewOpenAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return newOpenAICompatible("OpenAI", baseURL, apiKey, model)
}

// NewXAIProvider creates a provider for the xAI Grok API.
func NewXAIProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://api.x.ai/v1"
	}
	if model == "" {
		model = "grok-4-fast"
	}
	return newOpenAICompatible("xAI", baseURL, apiKey, model)
}

func newOpenAICompatible(name, baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", name)
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		model:   model,
		baseURL: baseURL,
		name:    name,
	}, nil
}

// Chat implements model.Provider with streaming.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	params := openai.ChatCompletionNewParams{
		Messages: ConvertToOpenAIMessages(messages),
		Model:    openai.ChatModel(p.model),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if callback != nil {
			if err := callback(chunk.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
	}

	if err := stream.Err(); err != nil {
		return fmt.Errorf("%s streaming error: %w", p.name, err)
	}
	return nil
}

func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// Ping implements model.Provider by listing models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
