package model

// ToolPlan is the planner's decision for a single message.
type ToolPlan struct {
	UseTool bool           `json:"useTool"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Reason  string         `json:"reason"`
}

// NoTool is the plan used whenever planning fails or yields nothing usable.
func NoTool(reason string) ToolPlan {
	return ToolPlan{UseTool: false, Reason: reason}
}
