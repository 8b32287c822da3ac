package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/apiguard/internal/janitor"
)

// Default rate limiter values.
const (
	DefaultMaxRequests     = 100
	DefaultWindow          = 15 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// Limit is a quota of Max requests per Window.
// Zero fields fall back to the limiter defaults.
type Limit struct {
	Max    int
	Window time.Duration
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// MaxRequests is the default quota per window.
	// Default: 100
	MaxRequests int

	// Window is the default window length.
	// Default: 15 minutes
	Window time.Duration

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// RateLimiterStats contains rate limiter statistics.
type RateLimiterStats struct {
	TotalRequests   int64 `json:"totalRequests"`
	BlockedRequests int64 `json:"blockedRequests"`
	ActiveWindows   int   `json:"activeWindows"`

	// HitRate is the admitted fraction of all requests, 0 before any request.
	HitRate float64 `json:"hitRate"`
}

type window struct {
	count         int
	resetAt       time.Time
	lastRequestAt time.Time
}

// RateLimiter implements a fixed-window counter per identifier.
//
// Windows are keyed by identifier together with the effective quota, so
// one client calling endpoints with different overrides has independent
// counters.
type RateLimiter struct {
	config RateLimiterConfig

	mu      sync.Mutex
	windows map[string]*window
	total   int64
	blocked int64

	janitor *janitor.Janitor
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.MaxRequests <= 0 {
		config.MaxRequests = DefaultMaxRequests
	}
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &RateLimiter{
		config:  config,
		windows: make(map[string]*window),
	}
}

// Config returns the effective configuration.
func (rl *RateLimiter) Config() RateLimiterConfig {
	return rl.config
}

// Effective resolves zero fields of l against the configured defaults.
func (rl *RateLimiter) Effective(l Limit) Limit {
	if l.Max <= 0 {
		l.Max = rl.config.MaxRequests
	}
	if l.Window <= 0 {
		l.Window = rl.config.Window
	}
	return l
}

// Allow checks and counts one request from identifier under l.
// A blocked request is not counted against the window.
func (rl *RateLimiter) Allow(identifier string, l Limit) bool {
	l = rl.Effective(l)
	key := windowKey(identifier, l)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.config.Now()
	rl.total++

	w, ok := rl.windows[key]
	switch {
	case !ok:
		rl.windows[key] = &window{count: 1, resetAt: now.Add(l.Window), lastRequestAt: now}
		return true
	case now.After(w.resetAt):
		w.count = 1
		w.resetAt = now.Add(l.Window)
		w.lastRequestAt = now
		return true
	case w.count >= l.Max:
		w.lastRequestAt = now
		rl.blocked++
		return false
	default:
		w.count++
		w.lastRequestAt = now
		return true
	}
}

// Execute runs op if identifier is within l.
func (rl *RateLimiter) Execute(ctx context.Context, identifier string, l Limit, op func(context.Context) error) error {
	l = rl.Effective(l)
	if !rl.Allow(identifier, l) {
		return &RateLimitError{Identifier: identifier, Limit: l, RetryAfter: l.Window}
	}
	return op(ctx)
}

// Remaining returns how many more requests identifier may make in the
// current window.
func (rl *RateLimiter) Remaining(identifier string, l Limit) int {
	l = rl.Effective(l)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[windowKey(identifier, l)]
	if !ok || rl.config.Now().After(w.resetAt) {
		return l.Max
	}
	if rem := l.Max - w.count; rem > 0 {
		return rem
	}
	return 0
}

// ResetTime returns when the current window for identifier rolls over.
// Without an active window it is one full window from now.
func (rl *RateLimiter) ResetTime(identifier string, l Limit) time.Time {
	l = rl.Effective(l)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.config.Now()
	w, ok := rl.windows[windowKey(identifier, l)]
	if !ok || now.After(w.resetAt) {
		return now.Add(l.Window)
	}
	return w.resetAt
}

// Reset clears the window for identifier under l.
func (rl *RateLimiter) Reset(identifier string, l Limit) {
	l = rl.Effective(l)

	rl.mu.Lock()
	delete(rl.windows, windowKey(identifier, l))
	rl.mu.Unlock()
}

// ResetAll clears every window and the request counters.
func (rl *RateLimiter) ResetAll() {
	rl.mu.Lock()
	rl.windows = make(map[string]*window)
	rl.total = 0
	rl.blocked = 0
	rl.mu.Unlock()
}

// Stats returns current rate limiter statistics.
func (rl *RateLimiter) Stats() RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := RateLimiterStats{
		TotalRequests:   rl.total,
		BlockedRequests: rl.blocked,
		ActiveWindows:   len(rl.windows),
	}
	if rl.total > 0 {
		stats.HitRate = float64(rl.total-rl.blocked) / float64(rl.total)
	}
	return stats
}

// Cleanup removes windows that have rolled over and returns how many were
// removed. Expired windows are also reset lazily on their next request.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.config.Now()
	removed := 0
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Cleanup every interval until Close is called.
// Calling it more than once has no effect.
func (rl *RateLimiter) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.janitor != nil {
		return
	}
	rl.janitor = janitor.Start(interval, func() { rl.Cleanup() })
}

// Close stops the janitor and clears all state. It is safe to call more
// than once.
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	j := rl.janitor
	rl.janitor = nil
	rl.mu.Unlock()

	j.Stop()
	rl.ResetAll()
}

func windowKey(identifier string, l Limit) string {
	return fmt.Sprintf("%s:%d:%d", identifier, l.Max, l.Window.Milliseconds())
}
