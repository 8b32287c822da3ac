package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrInvalidWindow is returned when a window string cannot be parsed.
	ErrInvalidWindow = errors.New("resilience: invalid window string")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// CircuitOpenError reports a call rejected by an open circuit.
// It unwraps to ErrCircuitOpen.
type CircuitOpenError struct {
	Service string

	// RetryAfter is the time left until the breaker admits a trial call.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit breaker is open for %q", e.Service)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// RateLimitError reports a call rejected by the rate limiter.
// It unwraps to ErrRateLimitExceeded.
type RateLimitError struct {
	Identifier string
	Limit      Limit

	// RetryAfter is the client backoff hint, derived from the window length.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("resilience: rate limit exceeded (%d per %s)", e.Limit.Max, e.Limit.Window)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimitExceeded }
