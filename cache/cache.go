// Package cache memoizes successful tool results keyed by tool name and
// arguments.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"spritebot/model"
)

// DefaultTTL is used when Put is called with a non-positive ttl.
const DefaultTTL = 30 * time.Minute

// DefaultSweepSchedule is the cron spec for StartSweeper.
const DefaultSweepSchedule = "@every 5m"

// Entry is a cached tool result.
type Entry struct {
	Key       string
	Result    model.ToolCallResult
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Stats is a snapshot of the cache contents.
type Stats struct {
	Size int
	Keys []string
}

// ResultCache is an in-memory TTL cache. It is safe for concurrent use.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithTTL sets the default time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *ResultCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ResultCache) { c.logger = logger }
}

// New creates an empty cache.
func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for a tool call. Objects are encoded with
// sorted keys at every depth, so argument order never affects the key.
func Key(toolName string, args map[string]any) string {
	payload, err := json.Marshal(map[string]any{
		"args":     args,
		"toolName": toolName,
	})
	if err != nil {
		// Unencodable args (NaN, channels) still get a stable key.
		payload = []byte(fmt.Sprintf("%s|%#v", toolName, args))
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result, or false if absent or expired.
func (c *ResultCache) Get(toolName string, args map[string]any) (model.ToolCallResult, bool) {
	key := Key(toolName, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return model.ToolCallResult{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		return model.ToolCallResult{}, false
	}
	return entry.Result, true
}

// Put stores result under the key for (toolName, args). A non-positive ttl
// uses the cache default.
func (c *ResultCache) Put(toolName string, args map[string]any, result model.ToolCallResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	key := Key(toolName, args)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry{
		Key:       key,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// SweepExpired removes every expired entry and returns how many were removed.
func (c *ResultCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Stats returns the current size and sorted keys.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys}
}

// StartSweeper runs SweepExpired on the given cron schedule until the
// returned stop function is called. An empty schedule uses
// DefaultSweepSchedule.
func (c *ResultCache) StartSweeper(schedule string) (stop func(), err error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	sched := cron.New()
	if _, err := sched.AddFunc(schedule, func() {
		if n := c.SweepExpired(); n > 0 {
			c.logger.Debug("swept expired cache entries", "removed", n)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	sched.Start()

	return func() {
		<-sched.Stop().Done()
	}, nil
}
