package testutil

import (
	"context"
	"sync"

	"spritebot/model"
)

// MockProvider implements model.Provider for testing.
type MockProvider struct {
	// Configurable responses
	ChatFunc func(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error
	PingFunc func(ctx context.Context) error

	mu       sync.Mutex
	calls    []ChatCall
	modelStr string
}

// ChatCall records one Chat invocation.
type ChatCall struct {
	Messages []model.Message
	Options  model.ChatOptions
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{modelStr: modelName}
	mock.ChatFunc = mock.defaultChat
	mock.PingFunc = func(ctx context.Context) error { return nil }
	return mock
}

// NewScriptedProvider returns a mock that answers successive Chat calls
// with replies in order. The last reply repeats once the script runs out.
func NewScriptedProvider(replies ...string) *MockProvider {
	mock := NewMockProvider("scripted-model")
	var i int
	mock.ChatFunc = func(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
		mock.mu.Lock()
		reply := ""
		if len(replies) > 0 {
			reply = replies[min(i, len(replies)-1)]
		}
		i++
		mock.mu.Unlock()
		if reply == "" {
			return nil
		}
		return callback(reply)
	}
	return mock
}

func (m *MockProvider) defaultChat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	if len(messages) > 0 {
		return callback("Mock response")
	}
	return nil
}

func (m *MockProvider) Chat(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
	m.mu.Lock()
	m.calls = append(m.calls, ChatCall{Messages: messages, Options: opts})
	m.mu.Unlock()
	return m.ChatFunc(ctx, messages, opts, callback)
}

// Calls returns the recorded Chat invocations.
func (m *MockProvider) Calls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatCall(nil), m.calls...)
}

func (m *MockProvider) GetModel() string {
	return m.modelStr
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
