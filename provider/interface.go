// Package provider implements the LLM backends the planner talks to.
//
// Every backend satisfies model.Provider, so the planner never sees SDK
// types. The provider layer owns all conversions between model.Message and
// the SDK message formats (see conversions.go).
//
// # Backends
//
//   - xai: Grok through xAI's OpenAI-compatible API (default)
//   - openai: api.openai.com or any compatible endpoint
//   - anthropic: Claude through the Messages API
//   - openrouter: OpenRouter's OpenAI-compatible gateway
//   - ollama: a local Ollama server
//
// # Usage
//
//	p, err := provider.NewProvider(provider.Config{
//	    Type:   provider.ProviderTypeXAI,
//	    Model:  "grok-4-fast",
//	    APIKey: key,
//	})
//	if err != nil {
//	    // handle error
//	}
//	reply, err := model.Collect(ctx, p, messages, model.ChatOptions{Temperature: 1})
package provider

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeXAI        ProviderType = "xai"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOllama     ProviderType = "ollama"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama
}
