package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"spritebot/config"
	"spritebot/model"
)

// Registry owns every provider connection and routes tool names to them.
type Registry struct {
	logger   *slog.Logger
	connOpts []ConnectionOption
	timeout  time.Duration

	mu     sync.RWMutex
	conns  []*Connection
	routes map[string]*Connection
	tools  map[string]ToolDescriptor
}

// NewRegistry creates an empty registry. connOpts are applied to every
// connection it launches.
func NewRegistry(logger *slog.Logger, connOpts ...ConnectionOption) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger.With("component", "mcp"),
		connOpts: connOpts,
		routes:   make(map[string]*Connection),
		tools:    make(map[string]ToolDescriptor),
	}
}

// SetCallTimeout overrides the per-call timeout used by Call.
func (r *Registry) SetCallTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

// Initialize launches every provider in order. Any failure is fatal: the
// providers already started are closed and the launch error is returned.
func (r *Registry) Initialize(ctx context.Context, providers []config.ToolProviderConfig) error {
	opts := append([]ConnectionOption{WithLogger(r.logger)}, r.connOpts...)

	var started []*Connection
	for _, cfg := range providers {
		conn, err := Connect(ctx, cfg, opts...)
		if err != nil {
			for _, c := range started {
				_ = c.Close()
			}
			return err
		}
		started = append(started, conn)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range started {
		r.addLocked(conn)
	}
	r.logger.Info("tool registry initialized", "providers", len(r.conns), "tools", len(r.routes))
	return nil
}

// addLocked registers conn's routes. Tools declared in config but not
// reported by the provider are skipped; reported but undeclared tools are
// routed too. The first provider to claim a tool keeps it.
func (r *Registry) addLocked(conn *Connection) {
	r.conns = append(r.conns, conn)

	reported := make(map[string]ToolDescriptor)
	for _, desc := range conn.ListTools() {
		reported[desc.Name] = desc
	}
	for _, name := range conn.cfg.Tools {
		if _, ok := reported[name]; !ok {
			r.logger.Warn("declared tool not reported by provider", "provider", conn.Name(), "tool", name)
		}
	}

	for _, desc := range conn.ListTools() {
		if owner, taken := r.routes[desc.Name]; taken {
			r.logger.Warn("tool already served by another provider", "tool", desc.Name, "provider", conn.Name(), "owner", owner.Name())
			continue
		}
		r.routes[desc.Name] = conn
		r.tools[desc.Name] = desc
	}
}

// Route returns the live connection serving tool.
func (r *Registry) Route(tool string) (*Connection, bool) {
	r.mu.RLock()
	conn, ok := r.routes[tool]
	r.mu.RUnlock()
	if !ok || !conn.Alive() {
		return nil, false
	}
	return conn, true
}

// Descriptors returns the descriptors of every routable tool in provider
// order.
func (r *Registry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ToolDescriptor
	for _, conn := range r.conns {
		if !conn.Alive() {
			continue
		}
		for _, desc := range conn.ListTools() {
			if r.routes[desc.Name] == conn {
				out = append(out, desc)
			}
		}
	}
	return out
}

// Tools returns the routable tool names, sorted.
func (r *Registry) Tools() []string {
	descs := r.Descriptors()
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// Catalog renders the routable tools for the planner prompt.
func (r *Registry) Catalog() string {
	return FormatCatalog(r.Descriptors())
}

// IsCacheable reports whether results of tool may be cached. Unknown tools
// are not cacheable.
func (r *Registry) IsCacheable(tool string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.tools[tool]
	return ok && desc.Cacheable
}

// Call invokes tool and folds every failure into the result.
func (r *Registry) Call(ctx context.Context, tool string, args map[string]any) model.ToolCallResult {
	res, _ := r.CallDetailed(ctx, tool, args)
	return res
}

// CallDetailed is Call that also returns the underlying error, so callers
// can tell timeouts, crashes and unknown tools apart.
func (r *Registry) CallDetailed(ctx context.Context, tool string, args map[string]any) (model.ToolCallResult, error) {
	conn, ok := r.Route(tool)
	if !ok {
		r.mu.RLock()
		_, known := r.routes[tool]
		r.mu.RUnlock()
		if known {
			err := fmt.Errorf("%w: tool %s", ErrProviderTerminated, tool)
			return model.FailedResult(err.Error()), err
		}
		return model.FailedResult("Unknown tool: " + tool), fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}

	r.mu.RLock()
	timeout := r.timeout
	r.mu.RUnlock()

	res, err := conn.Call(ctx, tool, args, timeout)
	if err != nil {
		r.logger.Error("tool call failed", "tool", tool, "provider", conn.Name(), "error", err)
		return model.FailedResult(err.Error()), err
	}
	return res, nil
}

// ProviderStatus summarizes one provider for diagnostics.
type ProviderStatus struct {
	Name  string
	State State
	Tools []string
}

// Providers returns the status of every provider in launch order.
func (r *Registry) Providers() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderStatus, 0, len(r.conns))
	for _, conn := range r.conns {
		st := ProviderStatus{Name: conn.Name(), State: conn.State()}
		for _, desc := range conn.ListTools() {
			st.Tools = append(st.Tools, desc.Name)
		}
		out = append(out, st)
	}
	return out
}

// Shutdown closes every provider in parallel. Failures are logged, not
// returned, and the context bounds how long Shutdown waits.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.routes = make(map[string]*Connection)
	r.tools = make(map[string]ToolDescriptor)
	r.mu.Unlock()

	r.logger.Debug("shutting down providers", "count", len(conns))

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			if err := c.Close(); err != nil {
				r.logger.Warn("error stopping provider", "provider", c.Name(), "error", err)
			}
		}(conn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("all providers stopped")
	case <-ctx.Done():
		r.logger.Warn("provider shutdown abandoned", "error", ctx.Err())
	}
}

// IsTimeout reports whether err came from a call deadline.
func IsTimeout(err error) bool { return errors.Is(err, ErrProviderTimeout) }
