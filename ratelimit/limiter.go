// Package ratelimit throttles users with a per-user sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Config configures the sliding window.
type Config struct {
	// MaxRequests is the number of requests a user may make per Window.
	MaxRequests int `toml:"max_requests_per_user_per_hour"`
	// Window is the length of the sliding window.
	Window time.Duration `toml:"-"`
}

// DefaultConfig returns 20 requests per hour.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 20,
		Window:      time.Hour,
	}
}

// Limiter tracks request timestamps per user.
//
// Every check is recorded, including rejected ones, so a user who keeps
// retrying while limited stays limited until they back off for a full window.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	max     int
	window  time.Duration
	now     func() time.Time
}

// New creates a limiter. Non-positive fields fall back to DefaultConfig.
func New(config Config) *Limiter {
	def := DefaultConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = def.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	return &Limiter{
		windows: make(map[string][]time.Time),
		max:     config.MaxRequests,
		window:  config.Window,
		now:     time.Now,
	}
}

// Check records a request for userID and reports whether it is allowed.
func (l *Limiter) Check(userID string) bool {
	return l.CheckAt(userID, l.now())
}

// CheckAt is Check with an explicit timestamp (for testing).
func (l *Limiter) CheckAt(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := inWindow(l.windows[userID], cutoff)
	recent = append(recent, now)

	// Only whether the count exceeds max matters, and the newest entries are
	// the last to leave the window, so max+1 entries are enough to keep.
	if len(recent) > l.max+1 {
		recent = recent[len(recent)-(l.max+1):]
	}
	l.windows[userID] = recent

	return len(recent) <= l.max
}

// Len returns how many timestamps for userID are currently in the window.
func (l *Limiter) Len(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(inWindow(l.windows[userID], l.now().Add(-l.window)))
}

// Prune drops users whose window has fully elapsed and returns how many
// were removed.
func (l *Limiter) Prune() int {
	return l.PruneAt(l.now())
}

// PruneAt is Prune with an explicit timestamp (for testing).
func (l *Limiter) PruneAt(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	removed := 0
	for user, times := range l.windows {
		recent := inWindow(times, cutoff)
		if len(recent) == 0 {
			delete(l.windows, user)
			removed++
			continue
		}
		l.windows[user] = recent
	}
	return removed
}

// inWindow returns the suffix of times strictly after cutoff. times is
// ordered oldest first.
func inWindow(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
