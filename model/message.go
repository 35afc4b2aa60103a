package model

import "time"

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is a single turn sent to an LLM provider.
type Message struct {
	Role    string
	Content string
}

// ConversationMessage is a persisted entry of a channel's history.
type ConversationMessage struct {
	ID         string
	Role       Role
	Content    string
	Timestamp  time.Time
	ToolName   string          // set for RoleTool
	ToolResult *ToolCallResult // set for RoleTool
}

// ToolCallResult is the normalized outcome of a tool invocation.
//
// When Success is false, Error is non-empty. Content may contain data URIs
// for image content reported by the provider.
type ToolCallResult struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content"`
	ImageURL string         `json:"imageUrl,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// FailedResult builds an unsuccessful ToolCallResult.
func FailedResult(msg string) ToolCallResult {
	return ToolCallResult{Success: false, Error: msg}
}
