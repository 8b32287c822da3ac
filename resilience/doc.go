// Package resilience provides the request-gating primitives used by the
// guard pipeline.
//
// # Patterns
//
//   - Circuit Breaker: one three-state circuit per service name. Failures
//     accumulate while closed; once the threshold is met the circuit opens
//     for a recovery timeout, after which the next gate check moves it to
//     half-open and admits traffic again. A success in half-open closes it.
//
//   - Rate Limiter: a fixed-window counter per identifier. Windows are keyed
//     by identifier and effective quota, so per-endpoint overrides count
//     independently. Window lengths are written as "<n> <unit>" strings and
//     parsed with ParseWindow at configuration time.
//
//   - Timeout: bounds an operation before it is handed to the breaker.
//
//   - Retry: re-runs a failed operation with exponential backoff. It wraps
//     calls inside a handler so the breaker records one outcome per call.
//
// Every component keeps its state in memory, guarded by its own mutex, and
// accepts an injectable clock for deterministic tests.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    RecoveryTimeout:  time.Minute,
//	})
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
//	    MaxRequests: 100,
//	    Window:      resilience.MustParseWindow("15 minutes"),
//	})
//
//	if !rl.Allow(clientIP, resilience.Limit{}) {
//	    return errTooManyRequests
//	}
//	err := cb.Execute(ctx, "GET /users", func(ctx context.Context) error {
//	    return callUpstream(ctx)
//	})
package resilience
