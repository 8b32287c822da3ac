package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/apiguard/observe"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingHandler returns a fixed response and counts invocations.
type countingHandler struct {
	calls atomic.Int64
	resp  *Response
	err   error
}

func (h *countingHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	h.calls.Add(1)
	if h.err != nil {
		return nil, h.err
	}
	return h.resp.Clone(), nil
}

type requestCall struct {
	method, route string
	status        int
}

type errorCall struct {
	kind, source, message string
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests []requestCall
	errors   []errorCall
}

func (m *recordingMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	m.requests = append(m.requests, requestCall{method, route, status})
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordError(ctx context.Context, kind, source, message string) {
	m.mu.Lock()
	m.errors = append(m.errors, errorCall{kind, source, message})
	m.mu.Unlock()
}

var _ observe.Metrics = (*recordingMetrics)(nil)

// newTestGuard returns a guard on a fake clock with background sweeps off.
func newTestGuard(t *testing.T, cfg Config, opts ...Option) (*Guard, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg.Cache.CleanupInterval = -1
	cfg.RateLimit.CleanupInterval = -1
	g := New(cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
	t.Cleanup(g.Close)
	return g, clock
}

func okResponse(body string) *Response {
	return &Response{Status: 200, Body: []byte(body)}
}
