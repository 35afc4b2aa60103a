// Package planner asks an LLM whether a message needs a tool and turns
// tool output into a conversational reply.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"spritebot/model"
)

const (
	ReasonPlannerUnavailable = "Error communicating with planning system"
	ReasonUnparseablePlan    = "Failed to parse planning response"

	finalizeFallback      = "I have processed your request."
	finalizeErrorFallback = "I have processed your request, but encountered an issue generating a response."
	emptyReplyFallback    = "..."

	// responseTemperatureScale makes replies a bit livelier than plans.
	responseTemperatureScale = 1.2
)

const planSchema = `{
  "type": "object",
  "required": ["useTool", "reason"],
  "properties": {
    "useTool": {"type": "boolean"},
    "tool": {"type": "string"},
    "args": {"type": "object"},
    "reason": {"type": "string"}
  }
}`

var (
	compiledPlanSchema = jsonschema.MustCompileString("plan.schema.json", planSchema)
	fenceOpen          = regexp.MustCompile("```json?\n?")
	fenceClose         = regexp.MustCompile("```\n?")
)

// Options configures a Planner.
type Options struct {
	BotName     string
	Temperature float64
	MaxTokens   int
	Prompts     Prompts
	Logger      *slog.Logger
}

// Planner implements the plan/respond collaborator on top of a
// model.Provider. It is safe for concurrent use.
type Planner struct {
	provider model.Provider
	botName  string
	opts     model.ChatOptions
	prompts  Prompts
	logger   *slog.Logger
}

func New(provider model.Provider, opts Options) *Planner {
	if opts.Prompts.Planner == "" {
		opts.Prompts = DefaultPrompts()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Planner{
		provider: provider,
		botName:  opts.BotName,
		opts:     model.ChatOptions{Temperature: opts.Temperature, MaxTokens: opts.MaxTokens},
		prompts:  opts.Prompts,
		logger:   opts.Logger.With("component", "planner", "model", provider.GetModel()),
	}
}

// Plan decides whether message needs a tool. It always returns a usable
// plan; the error reports a backend failure, in which case the plan is a
// no-tool plan.
func (p *Planner) Plan(ctx context.Context, message, history, catalog string) (model.ToolPlan, error) {
	messages := []model.Message{
		{Role: string(model.RoleSystem), Content: p.prompts.planner(catalog)},
		{Role: string(model.RoleUser), Content: fmt.Sprintf("Previous conversation:\n%s\n\nCurrent message: %s", history, message)},
	}

	content, err := model.Collect(ctx, p.provider, messages, p.opts)
	if err != nil {
		return model.NoTool(ReasonPlannerUnavailable), fmt.Errorf("planner request failed: %w", err)
	}

	plan, err := ParsePlan(content)
	if err != nil {
		p.logger.Warn("failed to parse tool plan", "content", content, "error", err)
		return model.NoTool(ReasonUnparseablePlan), nil
	}
	return plan, nil
}

// Respond writes the reply for a successful tool call. Backend failures
// degrade to a canned sentence rather than an error.
func (p *Planner) Respond(ctx context.Context, message, toolOutput, history string) string {
	messages := []model.Message{
		{Role: string(model.RoleSystem), Content: p.prompts.response(p.botName)},
		{Role: string(model.RoleUser), Content: fmt.Sprintf(
			"Previous conversation:\n%s\n\nUser message: %s\n\nTool result:\n%s\n\nProvide a natural response incorporating the tool result.",
			history, message, toolOutput)},
	}

	reply, err := model.Collect(ctx, p.provider, messages, p.responseOptions())
	if err != nil {
		p.logger.Error("failed to finalize response", "error", err)
		return finalizeErrorFallback
	}
	if strings.TrimSpace(reply) == "" {
		return finalizeFallback
	}
	return reply
}

// Generate writes a direct reply when no tool is used.
func (p *Planner) Generate(ctx context.Context, message, history string) (string, error) {
	messages := []model.Message{
		{Role: string(model.RoleSystem), Content: p.prompts.general(p.botName)},
		{Role: string(model.RoleUser), Content: fmt.Sprintf("Previous conversation:\n%s\n\nCurrent message: %s", history, message)},
	}

	reply, err := model.Collect(ctx, p.provider, messages, p.responseOptions())
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return emptyReplyFallback, nil
	}
	return reply, nil
}

func (p *Planner) responseOptions() model.ChatOptions {
	opts := p.opts
	opts.Temperature *= responseTemperatureScale
	return opts
}

// ParsePlan decodes a planner reply, tolerating a surrounding markdown
// code fence. The reply must match the plan schema.
func ParsePlan(content string) (model.ToolPlan, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = fenceOpen.ReplaceAllString(s, "")
		s = fenceClose.ReplaceAllString(s, "")
		s = strings.TrimSpace(s)
	}

	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return model.ToolPlan{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledPlanSchema.Validate(raw); err != nil {
		return model.ToolPlan{}, fmt.Errorf("plan does not match schema: %w", err)
	}

	var plan model.ToolPlan
	if err := json.Unmarshal([]byte(s), &plan); err != nil {
		return model.ToolPlan{}, err
	}
	return plan, nil
}
