package testutil

import "spritebot/model"

// TestMessages returns a planner-shaped conversation: system prompt, then
// the user turn carrying history.
func TestMessages() []model.Message {
	return []model.Message{
		SystemMessage("You are a tool planner. Respond with JSON only."),
		{
			Role:    string(model.RoleUser),
			Content: "Previous conversation:\nNo previous conversation.\n\nCurrent message: alice: draw a knight",
		},
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{{Role: string(model.RoleUser), Content: content}}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	return model.Message{Role: string(model.RoleSystem), Content: content}
}
