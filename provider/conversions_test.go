package provider

import (
	"testing"

	"spritebot/model"
)

func TestConvertToOllamaMessages(t *testing.T) {
	tests := []struct {
		name  string
		input []model.Message
	}{
		{name: "empty slice", input: []model.Message{}},
		{name: "single message", input: []model.Message{{Role: "user", Content: "Hello"}}},
		{
			name: "multiple messages",
			input: []model.Message{
				{Role: "system", Content: "You are a tool planner."},
				{Role: "user", Content: "Hello"},
				{Role: "assistant", Content: "Hi there"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertToOllamaMessages(tt.input)
			if len(result) != len(tt.input) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.input))
			}
			for i, msg := range result {
				if msg.Role != tt.input[i].Role {
					t.Errorf("message %d role: got %q, want %q", i, msg.Role, tt.input[i].Role)
				}
				if msg.Content != tt.input[i].Content {
					t.Errorf("message %d content: got %q, want %q", i, msg.Content, tt.input[i].Content)
				}
			}
		})
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := []model.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "u"},
		{Role: "assistant", Content: "a"},
		{Role: "tool", Content: "t"},
	}
	result := ConvertToOpenAIMessages(msgs)
	if len(result) != 4 {
		t.Fatalf("got %d messages", len(result))
	}
	if result[0].OfSystem == nil {
		t.Error("message 0 should be a system message")
	}
	if result[1].OfUser == nil || result[3].OfUser == nil {
		t.Error("user and tool messages should map to user messages")
	}
	if result[2].OfAssistant == nil {
		t.Error("message 2 should be an assistant message")
	}
}

func TestConvertToAnthropicMessages(t *testing.T) {
	msgs := []model.Message{
		{Role: "system", Content: "first"},
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "second"},
		{Role: "assistant", Content: "hi"},
	}
	converted, system := ConvertToAnthropicMessages(msgs)
	if len(system) != 2 || system[0].Text != "first" || system[1].Text != "second" {
		t.Errorf("system blocks = %+v", system)
	}
	if len(converted) != 2 {
		t.Fatalf("got %d messages, want 2", len(converted))
	}
	if converted[0].Role != "user" || converted[1].Role != "assistant" {
		t.Errorf("roles = %s, %s", converted[0].Role, converted[1].Role)
	}
}
