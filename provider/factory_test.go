package provider

import (
	"testing"

	"spritebot/config"
	"spritebot/model"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		wantModel   string
	}{
		{
			name:      "ollama provider with defaults",
			config:    Config{Type: ProviderTypeOllama},
			wantModel: "llama3.1:latest",
		},
		{
			name:      "xai provider defaults",
			config:    Config{Type: ProviderTypeXAI, APIKey: "test-key"},
			wantModel: "grok-4-fast",
		},
		{
			name:      "openai provider",
			config:    Config{Type: ProviderTypeOpenAI, Model: "gpt-4o-mini", APIKey: "test-key"},
			wantModel: "gpt-4o-mini",
		},
		{
			name:      "anthropic provider",
			config:    Config{Type: ProviderTypeAnthropic, Model: "claude-sonnet-4-5-20250929", APIKey: "test-key"},
			wantModel: "claude-sonnet-4-5-20250929",
		},
		{
			name:      "openrouter defaults",
			config:    Config{Type: ProviderTypeOpenRouter, APIKey: "test-key"},
			wantModel: "x-ai/grok-4-fast",
		},
		{
			name:        "xai without key",
			config:      Config{Type: ProviderTypeXAI},
			expectError: true,
		},
		{
			name:        "anthropic without key",
			config:      Config{Type: ProviderTypeAnthropic},
			expectError: true,
		},
		{
			name:        "unknown provider type",
			config:      Config{Type: ProviderType("unknown")},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if tt.expectError {
				if err == nil {
					t.Errorf("NewProvider() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider() unexpected error: %v", err)
			}
			if p.GetModel() != tt.wantModel {
				t.Errorf("GetModel() = %q, want %q", p.GetModel(), tt.wantModel)
			}
		})
	}
}

func TestFromPlannerConfigDropsXAIDefaults(t *testing.T) {
	pc := config.DefaultConfig().Planner
	pc.Provider = "ollama"

	p, err := FromPlannerConfig(pc)
	if err != nil {
		t.Fatalf("FromPlannerConfig: %v", err)
	}
	op, ok := p.(*OllamaProvider)
	if !ok {
		t.Fatalf("got %T, want *OllamaProvider", p)
	}
	if op.GetModel() != "llama3.1:latest" {
		t.Errorf("model = %q, xai default leaked through", op.GetModel())
	}
}

func TestProvidersImplementInterface(t *testing.T) {
	var _ model.Provider = (*OllamaProvider)(nil)
	var _ model.Provider = (*OpenAIProvider)(nil)
	var _ model.Provider = (*AnthropicProvider)(nil)
}
