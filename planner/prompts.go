package planner

import (
	"strings"

	"spritebot/config"
)

const (
	toolDescriptionsPlaceholder = "{TOOL_DESCRIPTIONS}"
	botNamePlaceholder          = "{BOT_NAME}"
)

const defaultPlannerPrompt = `You are the Tool Planner for a Discord bot. Decide whether the user's
current message needs one of the tools below, and if so which one and with
which arguments.

Available tools:
{TOOL_DESCRIPTIONS}

Respond with a single JSON object and nothing else:
{"useTool": true, "tool": "<tool name>", "args": {...}, "reason": "<short reason>"}
or
{"useTool": false, "reason": "<short reason>"}

Rules:
- Only use a tool when the user clearly asks for what it does.
- Use the exact tool names and argument names listed above.
- Use the conversation history to resolve references like "rotate it" or
  "that sprite" to concrete ids.
- Never invent ids or URLs.
`

const defaultResponsePrompt = `You are {BOT_NAME}, a friendly and knowledgeable AI assistant in a Discord
server.

IMPORTANT: The tool has already been executed and its result is given to
you. Describe what was done in a short, natural reply. Do not repeat raw
JSON, URLs or base64 data, and do not claim you cannot perform the action.
Images and animations are attached separately, so just refer to them.
`

const defaultGeneralPrompt = `You are {BOT_NAME}, a helpful assistant chatting in a Discord server.
Keep replies concise and conversational. Use the previous conversation for
context. If the user asks for something you cannot do, say so briefly.
`

// Prompts holds the three system prompts. Planner must contain
// {TOOL_DESCRIPTIONS}; Response and General may contain {BOT_NAME}.
type Prompts struct {
	Planner  string
	Response string
	General  string
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		Planner:  defaultPlannerPrompt,
		Response: defaultResponsePrompt,
		General:  defaultGeneralPrompt,
	}
}

// PromptsFromConfig overlays non-empty config overrides on the defaults.
func PromptsFromConfig(pc config.PromptsConfig) Prompts {
	p := DefaultPrompts()
	if pc.Planner != "" {
		p.Planner = withNewline(pc.Planner)
	}
	if pc.Response != "" {
		p.Response = withNewline(pc.Response)
	}
	if pc.General != "" {
		p.General = withNewline(pc.General)
	}
	return p
}

func withNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func (p Prompts) planner(catalog string) string {
	return strings.Replace(p.Planner, toolDescriptionsPlaceholder, catalog, 1)
}

func (p Prompts) response(botName string) string {
	return strings.ReplaceAll(p.Response, botNamePlaceholder, botName)
}

func (p Prompts) general(botName string) string {
	return strings.ReplaceAll(p.General, botNamePlaceholder, botName)
}
