package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"spritebot/model"
	"spritebot/provider/testutil"
)

// TestProviderContract defines the contract every provider must satisfy.
// Network-backed providers are exercised only through construction tests.
func TestProviderContract(t *testing.T) {
	tests := []struct {
		name     string
		provider model.Provider
	}{
		{"Mock", testutil.NewMockProvider("test-model")},
		{"Scripted", testutil.NewScriptedProvider("hello")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Run("BasicChat", func(t *testing.T) {
				testProviderBasicChat(t, tt.provider)
			})
			t.Run("Model", func(t *testing.T) {
				if tt.provider.GetModel() == "" {
					t.Error("GetModel() returned empty string")
				}
			})
			t.Run("HealthCheck", func(t *testing.T) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tt.provider.Ping(ctx); err != nil {
					t.Errorf("Ping() error = %v", err)
				}
			})
		})
	}
}

func testProviderBasicChat(t *testing.T, p model.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := model.Collect(ctx, p, testutil.SingleUserMessage("Hello"), model.ChatOptions{Temperature: 1})
	if err != nil {
		t.Errorf("Chat() error = %v", err)
	}
	if reply == "" {
		t.Error("Chat() did not receive any chunks")
	}
}

func TestCollectStopsOnCallbackError(t *testing.T) {
	p := testutil.NewMockProvider("m")
	boom := errors.New("boom")
	p.ChatFunc = func(ctx context.Context, messages []model.Message, opts model.ChatOptions, callback model.StreamCallback) error {
		return boom
	}

	if _, err := model.Collect(context.Background(), p, testutil.TestMessages(), model.ChatOptions{}); !errors.Is(err, boom) {
		t.Errorf("Collect() error = %v, want boom", err)
	}
}

func TestMockRecordsCalls(t *testing.T) {
	p := testutil.NewScriptedProvider("first", "second")

	for _, want := range []string{"first", "second", "second"} {
		got, err := model.Collect(context.Background(), p, testutil.TestMessages(), model.ChatOptions{MaxTokens: 10})
		if err != nil {
			t.Fatalf("Collect: %v", err)
		}
		if got != want {
			t.Errorf("reply = %q, want %q", got, want)
		}
	}

	calls := p.Calls()
	if len(calls) != 3 || calls[0].Options.MaxTokens != 10 || len(calls[0].Messages) != 2 {
		t.Errorf("calls = %+v", calls)
	}
}

func TestMockProviderImplementsInterface(t *testing.T) {
	var _ model.Provider = (*testutil.MockProvider)(nil)
}
