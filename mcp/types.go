package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"spritebot/config"
)

// ToolDescriptor describes one tool a provider reported at handshake.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Provider    string
	Cacheable   bool
}

// State is the lifecycle state of a Connection.
type State int

const (
	StateLaunching State = iota
	StateReady
	StateCallInFlight
	StateDead
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateCallInFlight:
		return "call-in-flight"
	case StateDead:
		return "dead"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrProviderCall is the base error of every failed tool call.
	ErrProviderCall = errors.New("provider call failed")
	// ErrProviderTimeout reports a call that exceeded its deadline.
	ErrProviderTimeout = fmt.Errorf("%w: timed out", ErrProviderCall)
	// ErrProviderTerminated reports a call on a provider whose process exited.
	ErrProviderTerminated = fmt.Errorf("%w: provider terminated", ErrProviderCall)
	// ErrUnknownTool reports a tool no provider serves.
	ErrUnknownTool = errors.New("unknown tool")
)

// ProviderLaunchError is returned when a provider cannot be spawned or fails
// its handshake.
type ProviderLaunchError struct {
	Provider string
	Err      error
}

func (e *ProviderLaunchError) Error() string {
	return fmt.Sprintf("failed to launch provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderLaunchError) Unwrap() error { return e.Err }

// Session is the subset of the mcp-go client used by a Connection.
type Session interface {
	Initialize(ctx context.Context, req mcptypes.InitializeRequest) (*mcptypes.InitializeResult, error)
	ListTools(ctx context.Context, req mcptypes.ListToolsRequest) (*mcptypes.ListToolsResult, error)
	CallTool(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
	Close() error
}

// Process is a launched provider.
type Process struct {
	Session Session
	// Stderr carries the provider's diagnostic output. May be nil.
	Stderr io.Reader
	// Exited is closed once the subprocess has exited.
	Exited <-chan struct{}
	// Kill forcibly stops the subprocess. May be nil.
	Kill func() error
	PID  int
}

// Launcher starts a provider process and returns an unconnected session.
type Launcher func(ctx context.Context, cfg config.ToolProviderConfig) (*Process, error)
