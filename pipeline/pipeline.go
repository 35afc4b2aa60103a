// Package pipeline runs one chat message through rate limiting, planning,
// optional tool invocation and reply formatting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"spritebot/cache"
	"spritebot/marker"
	"spritebot/mcp"
	"spritebot/metrics"
	"spritebot/model"
	"spritebot/ratelimit"
	"spritebot/validation"
)

// State is a step of the per-message state machine.
type State string

const (
	StateRateLimited     State = "rate-limited"
	StateFetchingHistory State = "fetching-history"
	StatePlanning        State = "planning"
	StateValidating      State = "validating"
	StateInvalid         State = "invalid"
	StateInvoking        State = "invoking"
	StateCached          State = "cached"
	StateCalling         State = "calling"
	StateCaching         State = "caching"
	StateResponding      State = "responding"
	StatePersisting      State = "persisting"
	StateFailed          State = "failed"
	StateDone            State = "done"
)

// Planner decides on tools and writes replies.
type Planner interface {
	Plan(ctx context.Context, message, history, catalog string) (model.ToolPlan, error)
	Respond(ctx context.Context, message, toolOutput, history string) string
	Generate(ctx context.Context, message, history string) (string, error)
}

// Tools is the registry surface the pipeline uses.
type Tools interface {
	Catalog() string
	IsCacheable(tool string) bool
	CallDetailed(ctx context.Context, tool string, args map[string]any) (model.ToolCallResult, error)
}

// History is the conversation store.
type History interface {
	Read(ctx context.Context, channelID string, limit int) ([]model.ConversationMessage, error)
	Append(ctx context.Context, channelID string, msg model.ConversationMessage) error
}

// ArgValidator checks planner-supplied arguments.
type ArgValidator interface {
	Validate(tool string, raw map[string]any) validation.Result
}

// Request is one inbound chat message.
type Request struct {
	ChannelID string
	UserID    string
	Username  string
	Text      string
}

// Reply is the pipeline's answer. Text may end in a marker payload.
type Reply struct {
	RequestID string
	Text      string
	Tool      string
	Trace     []State
}

// Config holds the pipeline's tunables.
type Config struct {
	ErrorMessage  string
	HistoryWindow int
}

// Pipeline wires the collaborators together. It is safe for concurrent
// use; each Handle call is independent.
type Pipeline struct {
	planner   Planner
	tools     Tools
	history   History
	validator ArgValidator
	cache     *cache.ResultCache
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func New(planner Planner, tools Tools, history History, validator ArgValidator, resultCache *cache.ResultCache, limiter *ratelimit.Limiter, cfg Config, opts ...Option) *Pipeline {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	p := &Pipeline{
		planner:   planner,
		tools:     tools,
		history:   history,
		validator: validator,
		cache:     resultCache,
		limiter:   limiter,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// run carries the state of one message through the steps.
type run struct {
	req       Request
	formatted string
	history   string
	tool      string
	toolMsg   *model.ConversationMessage
	reply     string
	failed    bool
	trace     []State
	logger    *slog.Logger
}

func (r *run) enter(s State) {
	r.trace = append(r.trace, s)
}

// Handle processes one message. It never panics and always returns a
// reply suitable for the user.
func (p *Pipeline) Handle(ctx context.Context, req Request) Reply {
	id := uuid.New().String()
	r := &run{
		req:       req,
		formatted: fmt.Sprintf("%s: %s", req.Username, req.Text),
		logger:    p.logger.With("request_id", id, "channel", req.ChannelID, "user", req.UserID),
	}

	if !p.limiter.Check(req.UserID) {
		r.enter(StateRateLimited)
		p.metrics.RecordRateLimited()
		p.metrics.RecordMessage("rate_limited")
		r.logger.Info("rate limited", "requests_in_window", p.limiter.Len(req.UserID))
		return Reply{RequestID: id, Text: RateLimitMessage, Trace: r.trace}
	}

	if err := p.process(ctx, r); err != nil {
		r.logger.Error("message processing failed", "error", err)
		r.enter(StateFailed)
		r.failed = true
		r.reply = p.cfg.ErrorMessage
	}

	p.persist(ctx, r)
	r.enter(StateDone)

	path := "chat"
	switch {
	case r.failed:
		path = "error"
	case r.tool != "":
		path = "tool"
	}
	p.metrics.RecordMessage(path)

	return Reply{RequestID: id, Text: r.reply, Tool: r.tool, Trace: r.trace}
}

// process runs the fallible steps, converting panics into errors.
func (p *Pipeline) process(ctx context.Context, r *run) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in pipeline", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	r.enter(StateFetchingHistory)
	r.history = p.readHistory(ctx, r)

	r.enter(StatePlanning)
	plan, planErr := p.planner.Plan(ctx, r.formatted, r.history, p.tools.Catalog())
	if planErr != nil {
		p.metrics.RecordPlannerError()
		r.logger.Warn("planner failed, answering without tools", "error", planErr)
	}
	r.logger.Debug("plan", "use_tool", plan.UseTool, "tool", plan.Tool, "reason", plan.Reason)

	if !plan.UseTool || plan.Tool == "" {
		r.enter(StateResponding)
		reply, err := p.planner.Generate(ctx, r.formatted, r.history)
		if err != nil {
			return fmt.Errorf("generate response: %w", err)
		}
		r.reply = reply
		return nil
	}

	r.tool = plan.Tool
	args := plan.Args
	if args == nil {
		args = map[string]any{}
	}

	r.enter(StateValidating)
	check := p.validator.Validate(plan.Tool, args)
	if !check.Valid {
		r.enter(StateInvalid)
		p.metrics.RecordToolCall(plan.Tool, metrics.OutcomeInvalid, 0)
		r.logger.Info("tool arguments rejected", "tool", plan.Tool, "error", check.Error)
		r.enter(StateResponding)
		r.reply = fmt.Sprintf(InvalidArgsFormat, plan.Tool, check.Error)
		return nil
	}

	res := p.invoke(ctx, r, plan.Tool, check.Data)

	r.toolMsg = &model.ConversationMessage{
		Role:       model.RoleTool,
		Content:    historyToolContent(res),
		Timestamp:  time.Now(),
		ToolName:   plan.Tool,
		ToolResult: historyToolResult(res),
	}

	r.enter(StateResponding)
	if !res.Success {
		r.reply = fmt.Sprintf(ToolFailureFormat, res.Error)
		return nil
	}

	reply := p.planner.Respond(ctx, r.formatted, StripDataURIs(res.Content), r.history)
	if res.ImageURL != "" || res.Metadata != nil {
		suffix, err := marker.Encode(markerKind(plan.Tool), flattenMetadata(res))
		if err != nil {
			return fmt.Errorf("encode marker: %w", err)
		}
		reply += suffix
	}
	r.reply = reply
	return nil
}

func (p *Pipeline) readHistory(ctx context.Context, r *run) string {
	msgs, err := p.history.Read(ctx, r.req.ChannelID, p.cfg.HistoryWindow)
	if err != nil {
		r.logger.Warn("failed to read history", "error", err)
		return model.EmptyHistory
	}
	return model.FormatHistory(msgs)
}

// invoke serves a validated call from the cache or the registry.
func (p *Pipeline) invoke(ctx context.Context, r *run, tool string, args map[string]any) model.ToolCallResult {
	r.enter(StateInvoking)

	cacheable := p.tools.IsCacheable(tool)
	if cacheable {
		if res, ok := p.cache.Get(tool, args); ok {
			r.enter(StateCached)
			p.metrics.RecordCacheLookup(true)
			p.metrics.RecordToolCall(tool, metrics.OutcomeCached, 0)
			r.logger.Debug("cache hit", "tool", tool)
			return res
		}
		p.metrics.RecordCacheLookup(false)
	}

	r.enter(StateCalling)
	r.logger.Info("calling tool", "tool", tool, "args", redactArgs(args))
	start := time.Now()
	res, err := p.tools.CallDetailed(ctx, tool, args)
	elapsed := time.Since(start)

	outcome := callOutcome(res, err)
	p.metrics.RecordToolCall(tool, outcome, elapsed)
	if !res.Success {
		r.logger.Warn("tool call failed",
			"tool", tool,
			"args", redactArgs(args),
			"outcome", outcome,
			"error", res.Error,
			"elapsed", elapsed,
		)
		return res
	}

	if cacheable {
		r.enter(StateCaching)
		p.cache.Put(tool, args, res, 0)
	}
	return res
}

func callOutcome(res model.ToolCallResult, err error) string {
	switch {
	case errors.Is(err, mcp.ErrProviderTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, mcp.ErrProviderTerminated):
		return metrics.OutcomeTerminated
	case errors.Is(err, mcp.ErrUnknownTool):
		return metrics.OutcomeUnknown
	case err != nil, !res.Success:
		return metrics.OutcomeFailure
	default:
		return metrics.OutcomeSuccess
	}
}

// persist appends the user, tool and assistant messages in that order.
// Failures are logged; the reply is delivered regardless.
func (p *Pipeline) persist(ctx context.Context, r *run) {
	r.enter(StatePersisting)

	msgs := []model.ConversationMessage{{
		Role:      model.RoleUser,
		Content:   r.formatted,
		Timestamp: time.Now(),
	}}
	if r.toolMsg != nil {
		msgs = append(msgs, *r.toolMsg)
	}
	if !r.failed {
		msgs = append(msgs, model.ConversationMessage{
			Role:      model.RoleAssistant,
			Content:   truncate(r.reply, assistantHistoryBound),
			Timestamp: time.Now(),
		})
	}

	for _, msg := range msgs {
		if err := p.history.Append(ctx, r.req.ChannelID, msg); err != nil {
			r.logger.Error("failed to persist message", "role", msg.Role, "error", err)
		}
	}
}
