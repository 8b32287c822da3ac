package guard

import "time"

// Outcome classifies how a guarded call ended.
type Outcome int

const (
	// OutcomeAllowed means the handler ran and succeeded.
	OutcomeAllowed Outcome = iota
	// OutcomeCacheHit means a cached response was returned.
	OutcomeCacheHit
	// OutcomeRateLimited means the caller exceeded its quota.
	OutcomeRateLimited
	// OutcomeCircuitOpen means the endpoint's circuit rejected the call.
	OutcomeCircuitOpen
	// OutcomeFailed means the handler returned an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeCircuitOpen:
		return "circuit_open"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Cache status values reported in Result.CacheStatus.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// Quota describes the caller's rate limit window after the call.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Result describes a guarded call.
type Result struct {
	Outcome Outcome

	// Status is the HTTP status to report.
	Status int

	// Response is set for OutcomeAllowed and OutcomeCacheHit.
	Response *Response

	// CacheStatus is CacheHit, CacheMiss, or empty when caching did not apply.
	CacheStatus string

	// RetryAfter is the backoff hint for rejected calls.
	RetryAfter time.Duration

	// Quota is set when rate limiting applied.
	Quota *Quota

	// Rejection is a *resilience.RateLimitError or *resilience.CircuitOpenError
	// for rejected calls.
	Rejection error
}

// Rejected reports whether the call was turned away before the handler.
func (r *Result) Rejected() bool {
	return r.Outcome == OutcomeRateLimited || r.Outcome == OutcomeCircuitOpen
}
