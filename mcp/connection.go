package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"spritebot/config"
	"spritebot/model"
)

// DefaultCallTimeout bounds a single tool call. Image generation can take
// several minutes.
const DefaultCallTimeout = 6 * time.Minute

const (
	protocolVersion = "2025-06-18"
	clientName      = "spritebot"
	clientVersion   = "1.0.0"
	closeTimeout    = 1 * time.Second
)

// Connection supervises one tool provider subprocess speaking MCP over
// stdio. Concurrent calls are allowed; responses are matched to requests by
// the JSON-RPC id inside the transport.
type Connection struct {
	cfg      config.ToolProviderConfig
	launcher Launcher
	logger   *slog.Logger
	timeout  time.Duration

	mu       sync.RWMutex
	state    State
	proc     *Process
	tools    []ToolDescriptor
	inFlight int
	dead     chan struct{}
	closed   bool
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithLauncher replaces the stdio launcher (for testing).
func WithLauncher(l Launcher) ConnectionOption {
	return func(c *Connection) { c.launcher = l }
}

// WithLogger sets the connection logger.
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(c *Connection) { c.logger = logger }
}

// WithCallTimeout sets the default per-call timeout.
func WithCallTimeout(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Connect launches the provider described by cfg and performs the MCP
// handshake. On failure the subprocess is stopped and a
// *ProviderLaunchError is returned.
func Connect(ctx context.Context, cfg config.ToolProviderConfig, opts ...ConnectionOption) (*Connection, error) {
	c := &Connection{
		cfg:      cfg,
		launcher: StdioLauncher,
		timeout:  DefaultCallTimeout,
		state:    StateLaunching,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("provider", cfg.Name)

	if err := c.launch(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) launch(ctx context.Context) error {
	c.logger.Debug("launching provider", "command", c.cfg.Command, "args", c.cfg.Args)

	proc, err := c.launcher(ctx, c.cfg)
	if err != nil {
		return &ProviderLaunchError{Provider: c.cfg.Name, Err: err}
	}
	if proc.Stderr != nil {
		go c.forwardStderr(proc.Stderr)
	}

	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}
	if _, err := proc.Session.Initialize(ctx, initReq); err != nil {
		stopProcess(proc, c.logger)
		return &ProviderLaunchError{Provider: c.cfg.Name, Err: fmt.Errorf("initialize: %w", err)}
	}

	listed, err := proc.Session.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		stopProcess(proc, c.logger)
		return &ProviderLaunchError{Provider: c.cfg.Name, Err: fmt.Errorf("list tools: %w", err)}
	}

	tools := describeTools(c.cfg, listed.Tools)
	dead := make(chan struct{})

	c.mu.Lock()
	c.proc = proc
	c.tools = tools
	c.dead = dead
	c.closed = false
	c.inFlight = 0
	c.state = StateReady
	c.mu.Unlock()

	if proc.Exited != nil {
		go c.watch(proc)
	}

	c.logger.Info("provider ready", "pid", proc.PID, "tools", len(tools))
	return nil
}

// watch marks the connection dead when the subprocess exits.
func (c *Connection) watch(proc *Process) {
	<-proc.Exited

	c.mu.Lock()
	if c.proc != proc {
		c.mu.Unlock()
		return
	}
	wasClosed := c.closed
	c.markDeadLocked()
	c.mu.Unlock()

	if !wasClosed {
		c.logger.Warn("provider exited unexpectedly")
	}
}

func (c *Connection) markDeadLocked() {
	c.state = StateDead
	select {
	case <-c.dead:
	default:
		close(c.dead)
	}
}

// Name returns the provider name.
func (c *Connection) Name() string { return c.cfg.Name }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Alive reports whether the connection can accept calls.
func (c *Connection) Alive() bool {
	return c.State() != StateDead
}

// ListTools returns the tools reported at handshake.
func (c *Connection) ListTools() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolDescriptor, len(c.tools))
	copy(out, c.tools)
	return out
}

// Call invokes tool with args. A non-positive timeout uses the connection
// default. A timeout leaves the subprocess running; a subprocess exit
// fails the call with ErrProviderTerminated.
func (c *Connection) Call(ctx context.Context, tool string, args map[string]any, timeout time.Duration) (model.ToolCallResult, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}

	c.mu.Lock()
	if c.state == StateDead || c.proc == nil {
		c.mu.Unlock()
		return model.ToolCallResult{}, fmt.Errorf("%w: %s", ErrProviderTerminated, c.cfg.Name)
	}
	sess := c.proc.Session
	dead := c.dead
	c.inFlight++
	c.state = StateCallInFlight
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight--
		if c.inFlight == 0 && c.state == StateCallInFlight {
			c.state = StateReady
		}
		c.mu.Unlock()
	}()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res *mcptypes.CallToolResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		req := mcptypes.CallToolRequest{
			Params: mcptypes.CallToolParams{
				Name:      tool,
				Arguments: args,
			},
		}
		res, err := sess.CallTool(callCtx, req)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			switch {
			case isClosed(dead):
				return model.ToolCallResult{}, fmt.Errorf("%w: %s", ErrProviderTerminated, c.cfg.Name)
			case ctx.Err() == nil && callCtx.Err() != nil:
				return model.ToolCallResult{}, fmt.Errorf("%w: %s after %s", ErrProviderTimeout, tool, timeout)
			}
			return model.ToolCallResult{}, fmt.Errorf("%w: %s: %w", ErrProviderCall, tool, out.err)
		}
		return ExtractResult(out.res), nil

	case <-dead:
		return model.ToolCallResult{}, fmt.Errorf("%w: %s", ErrProviderTerminated, c.cfg.Name)

	case <-callCtx.Done():
		if ctx.Err() != nil {
			return model.ToolCallResult{}, fmt.Errorf("%w: %s: %w", ErrProviderCall, tool, ctx.Err())
		}
		return model.ToolCallResult{}, fmt.Errorf("%w: %s after %s", ErrProviderTimeout, tool, timeout)
	}
}

// Close stops the provider. Outstanding calls fail with
// ErrProviderTerminated. Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	proc := c.proc
	if proc == nil || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.markDeadLocked()
	c.mu.Unlock()

	stopProcess(proc, c.logger)
	c.logger.Info("provider stopped")
	return nil
}

// Reconnect relaunches a dead provider. It fails if the connection is alive.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDead {
		c.mu.Unlock()
		return fmt.Errorf("provider %s is %s, not dead", c.cfg.Name, c.state)
	}
	old := c.proc
	c.state = StateLaunching
	c.closed = true
	c.mu.Unlock()

	if old != nil {
		stopProcess(old, c.logger)
	}
	if err := c.launch(ctx); err != nil {
		c.mu.Lock()
		c.state = StateDead
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Connection) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.logger.Info("provider stderr", "line", scanner.Text())
	}
}

// stopProcess closes the session with a short timeout, then kills the
// subprocess.
func stopProcess(proc *Process, logger *slog.Logger) {
	closeDone := make(chan error, 1)
	go func() {
		closeDone <- proc.Session.Close()
	}()

	select {
	case err := <-closeDone:
		if err != nil {
			logger.Debug("closing provider session", "error", err)
		}
	case <-time.After(closeTimeout):
		logger.Debug("provider session close timed out")
	}

	if proc.Kill != nil {
		if err := proc.Kill(); err != nil {
			logger.Debug("killing provider process", "error", err)
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func describeTools(cfg config.ToolProviderConfig, tools []mcptypes.Tool) []ToolDescriptor {
	nonCacheable := make(map[string]bool, len(cfg.NonCacheable))
	for _, name := range cfg.NonCacheable {
		nonCacheable[name] = true
	}

	out := make([]ToolDescriptor, 0, len(tools))
	for _, t := range tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		out = append(out, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
			Provider:    cfg.Name,
			Cacheable:   !nonCacheable[t.Name],
		})
	}
	return out
}

// StdioLauncher spawns cfg.Command with the process environment plus
// cfg.Env (provider values win) and wires an MCP stdio client to it.
func StdioLauncher(ctx context.Context, cfg config.ToolProviderConfig) (*Process, error) {
	var captured *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		captured = cmd
		return cmd, nil
	}

	cli, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		providerEnv(cfg.Env),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, err
	}

	proc := &Process{Session: cli}
	if stderr, ok := client.GetStderr(cli); ok {
		proc.Stderr = stderr
	}

	switch {
	case captured != nil && captured.Process != nil:
		osProc := captured.Process
		exited := make(chan struct{})
		proc.Exited = exited
		proc.PID = osProc.Pid
		proc.Kill = osProc.Kill
		go func() {
			_, _ = osProc.Wait()
			close(exited)
		}()
	}

	return proc, nil
}

// providerEnv starts from the current environment so PATH and friends
// survive, then appends provider values; exec uses the last duplicate.
func providerEnv(envMap map[string]string) []string {
	env := os.Environ()
	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
