package model

import (
	"fmt"
	"strings"
)

const toolSnippetLimit = 200

// EmptyHistory is rendered when a channel has no stored messages.
const EmptyHistory = "No previous conversation history."

// FormatHistory renders stored messages as the plain-text transcript the
// planner prompts embed. Tool results are abbreviated to a short snippet.
func FormatHistory(messages []ConversationMessage) string {
	if len(messages) == 0 {
		return EmptyHistory
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleTool:
			lines = append(lines, fmt.Sprintf("[Tool: %s]\nResult: %s", msg.ToolName, snippet(msg.Content, toolSnippetLimit)))
		case RoleUser:
			lines = append(lines, "User: "+msg.Content)
		case RoleSystem:
			lines = append(lines, "System: "+msg.Content)
		default:
			lines = append(lines, "Assistant: "+msg.Content)
		}
	}
	return strings.Join(lines, "\n\n")
}

// snippet cuts s to at most n runes, marking the cut with "...".
func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
