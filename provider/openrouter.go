package provider

// NewOpenRouterProvider creates a provider for OpenRouter, which is
// OpenAI-compatible and routes to many hosted models.
//
// Parameters:
//   - baseURL: OpenRouter API base URL (default: "https://openrouter.ai/api/v1")
//   - apiKey: OpenRouter API key (required)
//   - model: model to use (default: "x-ai/grok-4-fast")
func NewOpenRouterProvider(baseURL, apiKey, model string) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if model == "" {
		model = "x-ai/grok-4-fast"
	}
	return newOpenAICompatible("OpenRouter", baseURL, apiKey, model)
}
