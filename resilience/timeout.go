package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout is used when NewTimeout is given a non-positive duration.
const DefaultTimeout = 30 * time.Second

// Timeout bounds how long an operation may run.
//
// The circuit breaker and rate limiter never time calls out themselves; a
// caller that needs a deadline wraps the operation before handing it to
// CircuitBreaker.Execute, so a timed-out call is recorded as a failure.
type Timeout struct {
	limit time.Duration
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(limit time.Duration) *Timeout {
	if limit <= 0 {
		limit = DefaultTimeout
	}
	return &Timeout{limit: limit}
}

// Limit returns the configured duration.
func (t *Timeout) Limit() time.Duration {
	return t.limit
}

// Execute runs op with a deadline. When the deadline passes first, the
// returned error wraps ErrTimeout; op keeps running in the background with
// a cancelled context.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, t.limit)
		}
		return ctx.Err()
	}
}

// Wrap returns op bound to the timeout.
func (t *Timeout) Wrap(op func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return t.Execute(ctx, op)
	}
}
