package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"spritebot/cache"
	"spritebot/mcp"
	"spritebot/metrics"
	"spritebot/model"
	"spritebot/storage"
	"spritebot/validation"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPRITEBOT_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("DISCORD_TOKEN", "")
	path := filepath.Join(dir, "config.toml")

	out, err := runCmd(t, "validate-config", "--config", path)
	if err != nil {
		t.Fatalf("validate-config: %v", err)
	}
	for _, want := range []string{"Config OK", "pixellab", "tools-python", "xai-image", "no Discord token"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestClearHistoryRequiresChannel(t *testing.T) {
	if _, err := runCmd(t, "clear-history"); err == nil {
		t.Error("expected error without --channel")
	}
}

func TestHistoryPrintsStoredConversation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPRITEBOT_DATA_DIR", filepath.Join(dir, "data"))
	path := filepath.Join(dir, "config.toml")

	if _, err := runCmd(t, "validate-config", "--config", path); err != nil {
		t.Fatalf("validate-config: %v", err)
	}
	store, err := storage.NewConversationStore(filepath.Join(dir, "data", "conversations.db"), 100)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	for _, msg := range []model.ConversationMessage{
		{Role: model.RoleUser, Content: "ana: weather in Oslo?"},
		{Role: model.RoleAssistant, Content: "Chilly."},
	} {
		if err := store.Append(ctx, "c1", msg); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	store.Close()

	out, err := runCmd(t, "history", "--config", path, "--channel", "c1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"weather in Oslo?", "Chilly."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCmd(t, "history", "--config", path); err == nil {
		t.Error("expected error without --channel")
	}
}

func TestReportStatusPublishesCacheSize(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := cache.New()
	c.Put("get_weather", map[string]any{"location": "Oslo"}, model.ToolCallResult{Success: true, Content: "cold"}, time.Minute)
	m := metrics.New(prometheus.NewRegistry())

	reportStatus(mcp.NewRegistry(logger), c, m)

	if got := testutil.ToFloat64(m.CacheEntries); got != 1 {
		t.Errorf("cache entries gauge = %v, want 1", got)
	}
}

func TestRegisterSchemas(t *testing.T) {
	v := validation.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registerSchemas(v, []mcp.ToolDescriptor{
		{Name: "lookup_card", Provider: "cards", InputSchema: json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)},
		{Name: "broken", Provider: "cards", InputSchema: json.RawMessage(`{"type":`)},
		{Name: "get_weather", Provider: "tools-python", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "no_schema", Provider: "cards"},
	}, logger)

	if !v.Has("lookup_card") {
		t.Fatal("provider schema not registered")
	}
	if res := v.Validate("lookup_card", map[string]any{}); res.Valid {
		t.Error("provider schema not enforced")
	}
	if v.Has("broken") || v.Has("no_schema") {
		t.Error("invalid or missing schema registered")
	}
	if res := v.Validate("get_weather", map[string]any{}); res.Valid {
		t.Error("built-in schema was replaced by the provider's looser one")
	}
}
