package provider

import (
	"fmt"

	"spritebot/config"
	"spritebot/model"
)

// NewProvider creates a provider based on configuration.
//
// Returns an error if the provider type is unknown or the provider-specific
// constructor fails (missing API key, invalid URL).
func NewProvider(cfg Config) (model.Provider, error) {
	switch cfg.Type {
	case ProviderTypeXAI:
		return NewXAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeOpenRouter:
		return NewOpenRouterProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}

// FromPlannerConfig builds the planner's provider from the [planner] config
// section. The xAI base URL default only applies to the xai backend.
func FromPlannerConfig(pc config.PlannerConfig) (model.Provider, error) {
	cfg := Config{
		Type:    ProviderType(pc.Provider),
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		APIKey:  pc.APIKey,
	}
	if cfg.Type != ProviderTypeXAI && cfg.BaseURL == config.DefaultXAIBaseURL {
		cfg.BaseURL = ""
	}
	if cfg.Type != ProviderTypeXAI && cfg.Model == config.DefaultPlannerModel {
		cfg.Model = ""
	}
	return NewProvider(cfg)
}
