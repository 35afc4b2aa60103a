package model

import (
	"context"
	"strings"
)

// Provider abstracts the LLM backends (xAI/OpenAI-compatible, Anthropic,
// Ollama) the planner talks to.
//
// This interface lives in the model package (not provider) so that the
// planner can depend on it without importing provider implementations.
type Provider interface {
	// Chat sends messages and streams the response back via callback.
	Chat(ctx context.Context, messages []Message, opts ChatOptions, callback StreamCallback) error

	// GetModel returns the model name used for API calls.
	GetModel() string

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// ChatOptions tunes a single completion. Zero values leave the backend default.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// StreamCallback is called for each chunk of a streamed response.
type StreamCallback func(chunk string) error

// Collect runs a chat request and returns the concatenated response.
func Collect(ctx context.Context, p Provider, messages []Message, opts ChatOptions) (string, error) {
	var sb strings.Builder
	err := p.Chat(ctx, messages, opts, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
