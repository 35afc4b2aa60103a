package provider

import (
	"context"
	"fmt"

	"spritebot/model"
	"spritebot/ollama"
)

// OllamaProvider wraps ollama.Client to implement model.Provider.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL. Defaults to "http://localhost:11434".
//   - model: The model name to use. Defaults to "llama3.1:latest".
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	return &OllamaProvider{client: client}, nil
}

// Chat implements model.Provider.
func (p *OllamaProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	return p.client.Chat(ctx, ConvertToOllamaMessages(messages), ollama.Options{
		Temperature: opts.Temperature,
		NumPredict:  opts.MaxTokens,
	}, ollama.StreamCallback(callback))
}

func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
