package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Default retry values.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 100 * time.Millisecond
	DefaultMaxDelay     = 5 * time.Second
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Each further
	// wait doubles, capped at MaxDelay.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps a single wait.
	// Default: 5s
	MaxDelay time.Duration

	// Jitter adds up to 25% to each wait.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: any non-nil error.
	RetryIf func(err error) bool

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep waits for d or until ctx is done. Default: a timer wait
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry re-runs an operation with exponential backoff.
//
// Retry sits inside a handler, below the circuit breaker, so the breaker
// sees one outcome per call no matter how many attempts were made.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a Retry.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	if config.Sleep == nil {
		config.Sleep = sleep
	}
	return &Retry{config: config}
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// Execute runs op until it succeeds, returns an error RetryIf rejects, or
// MaxAttempts is reached. The last error is returned unchanged; a
// cancelled wait returns the context error.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= r.config.MaxAttempts || !r.config.RetryIf(err) {
			return err
		}

		delay := r.Delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if werr := r.config.Sleep(ctx, delay); werr != nil {
			return werr
		}
	}
}

// Delay returns the wait after the given failed attempt, starting at 1.
func (r *Retry) Delay(attempt int) time.Duration {
	delay := r.config.InitialDelay
	for i := 1; i < attempt && delay < r.config.MaxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, r.config.MaxDelay)

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
