package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"spritebot/config"
)

// fakeSession is an in-memory MCP session.
type fakeSession struct {
	tools   []mcptypes.Tool
	initErr error
	listErr error
	call    func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
	closed  atomic.Bool
}

func (f *fakeSession) Initialize(ctx context.Context, req mcptypes.InitializeRequest) (*mcptypes.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcptypes.InitializeResult{}, nil
}

func (f *fakeSession) ListTools(ctx context.Context, req mcptypes.ListToolsRequest) (*mcptypes.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcptypes.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeSession) CallTool(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	if f.call == nil {
		return mcptypes.NewToolResultText("ok"), nil
	}
	return f.call(ctx, req)
}

func (f *fakeSession) Close() error {
	f.closed.Store(true)
	return nil
}

// fakeProcess lets a test simulate the subprocess exiting.
type fakeProcess struct {
	session *fakeSession
	exited  chan struct{}
	once    sync.Once
	killed  atomic.Bool
}

func newFakeProcess(session *fakeSession) *fakeProcess {
	return &fakeProcess{session: session, exited: make(chan struct{})}
}

func (p *fakeProcess) exit() { p.once.Do(func() { close(p.exited) }) }

func (p *fakeProcess) launcher() Launcher {
	return func(ctx context.Context, cfg config.ToolProviderConfig) (*Process, error) {
		return &Process{
			Session: p.session,
			Exited:  p.exited,
			Kill: func() error {
				p.killed.Store(true)
				p.exit()
				return nil
			},
			PID: 4242,
		}, nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTools(names ...string) []mcptypes.Tool {
	tools := make([]mcptypes.Tool, 0, len(names))
	for _, n := range names {
		tools = append(tools, mcptypes.NewTool(n,
			mcptypes.WithDescription("does "+n),
			mcptypes.WithString("location", mcptypes.Required()),
		))
	}
	return tools
}

func connectFake(t *testing.T, proc *fakeProcess, cfg config.ToolProviderConfig, opts ...ConnectionOption) *Connection {
	t.Helper()
	opts = append([]ConnectionOption{WithLauncher(proc.launcher()), WithLogger(quietLogger())}, opts...)
	conn, err := Connect(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestConnectListsTools(t *testing.T) {
	proc := newFakeProcess(&fakeSession{tools: testTools("get_weather", "get_current_time")})
	conn := connectFake(t, proc, config.ToolProviderConfig{
		Name:         "tools-python",
		NonCacheable: []string{"get_current_time"},
	})

	if conn.State() != StateReady {
		t.Errorf("state = %s, want ready", conn.State())
	}

	tools := conn.ListTools()
	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(tools))
	}
	if tools[0].Name != "get_weather" || tools[0].Provider != "tools-python" || !tools[0].Cacheable {
		t.Errorf("unexpected descriptor %+v", tools[0])
	}
	if tools[1].Cacheable {
		t.Error("get_current_time should be non-cacheable")
	}
	if len(tools[0].InputSchema) == 0 {
		t.Error("input schema missing")
	}
}

func TestConnectLaunchFailure(t *testing.T) {
	launcher := func(ctx context.Context, cfg config.ToolProviderConfig) (*Process, error) {
		return nil, errors.New("exec: \"nope\": executable file not found")
	}
	_, err := Connect(context.Background(), config.ToolProviderConfig{Name: "broken"},
		WithLauncher(launcher), WithLogger(quietLogger()))

	var launchErr *ProviderLaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected ProviderLaunchError, got %v", err)
	}
	if launchErr.Provider != "broken" {
		t.Errorf("provider = %q", launchErr.Provider)
	}
}

func TestConnectHandshakeFailureStopsProcess(t *testing.T) {
	session := &fakeSession{initErr: errors.New("bad protocol")}
	proc := newFakeProcess(session)

	_, err := Connect(context.Background(), config.ToolProviderConfig{Name: "p"},
		WithLauncher(proc.launcher()), WithLogger(quietLogger()))

	var launchErr *ProviderLaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected ProviderLaunchError, got %v", err)
	}
	if !session.closed.Load() || !proc.killed.Load() {
		t.Error("failed handshake must stop the subprocess")
	}
}

func TestCallReturnsExtractedResult(t *testing.T) {
	session := &fakeSession{
		tools: testTools("generate_sprite"),
		call: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			return mcptypes.NewToolResultText(`{"imageUrl":"https://cdn/s.png","spriteId":"s1"}`), nil
		},
	}
	conn := connectFake(t, newFakeProcess(session), config.ToolProviderConfig{Name: "pixellab"})

	res, err := conn.Call(context.Background(), "generate_sprite", map[string]any{"prompt": "x"}, 0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.Success || res.ImageURL != "https://cdn/s.png" || res.Metadata["spriteId"] != "s1" {
		t.Errorf("unexpected result %+v", res)
	}
	if conn.State() != StateReady {
		t.Errorf("state after call = %s, want ready", conn.State())
	}
}

func TestCallTimeout(t *testing.T) {
	session := &fakeSession{
		tools: testTools("slow"),
		call: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	proc := newFakeProcess(session)
	conn := connectFake(t, proc, config.ToolProviderConfig{Name: "p"})

	_, err := conn.Call(context.Background(), "slow", nil, 20*time.Millisecond)
	if !errors.Is(err, ErrProviderTimeout) {
		t.Fatalf("expected ErrProviderTimeout, got %v", err)
	}
	if !errors.Is(err, ErrProviderCall) {
		t.Error("timeout must also match ErrProviderCall")
	}
	if proc.killed.Load() {
		t.Error("timeout must not kill the subprocess")
	}
	if !conn.Alive() {
		t.Error("connection should stay alive after a timeout")
	}
}

func TestProviderExitMidCall(t *testing.T) {
	started := make(chan struct{})
	session := &fakeSession{
		tools: testTools("generate_sprite"),
		call: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	proc := newFakeProcess(session)
	conn := connectFake(t, proc, config.ToolProviderConfig{Name: "pixellab"})

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Call(context.Background(), "generate_sprite", nil, time.Minute)
		errCh <- err
	}()

	<-started
	proc.exit()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrProviderTerminated) {
			t.Fatalf("expected ErrProviderTerminated, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call did not fail after provider exit")
	}

	waitForState(t, conn, StateDead)

	if _, err := conn.Call(context.Background(), "generate_sprite", nil, 0); !errors.Is(err, ErrProviderTerminated) {
		t.Errorf("later call: expected ErrProviderTerminated, got %v", err)
	}
}

func TestConcurrentCallsAreCorrelated(t *testing.T) {
	session := &fakeSession{
		tools: testTools("echo"),
		call: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			args := req.GetArguments()
			time.Sleep(time.Duration(len(fmt.Sprint(args["n"]))) * time.Millisecond)
			return mcptypes.NewToolResultText(fmt.Sprint(args["n"])), nil
		},
	}
	conn := connectFake(t, newFakeProcess(session), config.ToolProviderConfig{Name: "p"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := conn.Call(context.Background(), "echo", map[string]any{"n": n}, 0)
			if err != nil {
				t.Errorf("call %d: %v", n, err)
				return
			}
			if res.Content != fmt.Sprint(n) {
				t.Errorf("call %d got %q", n, res.Content)
			}
		}(i)
	}
	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	session := &fakeSession{tools: testTools("a")}
	proc := newFakeProcess(session)
	conn := connectFake(t, proc, config.ToolProviderConfig{Name: "p"})

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !session.closed.Load() || !proc.killed.Load() {
		t.Error("Close must close the session and kill the process")
	}
	if conn.State() != StateDead {
		t.Errorf("state = %s, want dead", conn.State())
	}
}

func TestReconnect(t *testing.T) {
	first := newFakeProcess(&fakeSession{tools: testTools("a")})
	second := newFakeProcess(&fakeSession{tools: testTools("a", "b")})
	launches := 0
	launcher := func(ctx context.Context, cfg config.ToolProviderConfig) (*Process, error) {
		launches++
		if launches == 1 {
			return first.launcher()(ctx, cfg)
		}
		return second.launcher()(ctx, cfg)
	}

	conn, err := Connect(context.Background(), config.ToolProviderConfig{Name: "p"},
		WithLauncher(launcher), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Reconnect(context.Background()); err == nil {
		t.Error("Reconnect on a live connection should fail")
	}

	first.exit()
	waitForState(t, conn, StateDead)

	if err := conn.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if conn.State() != StateReady || len(conn.ListTools()) != 2 {
		t.Errorf("after reconnect: state=%s tools=%d", conn.State(), len(conn.ListTools()))
	}
}

func waitForState(t *testing.T, conn *Connection, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", conn.State(), want)
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateLaunching:    "launching",
		StateReady:        "ready",
		StateCallInFlight: "call-in-flight",
		StateDead:         "dead",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(st), st.String(), want)
		}
	}
}
