package cache

import (
	"net/http"
	"slices"
	"strings"
	"time"
)

// Policy configures which requests are cached and for how long.
type Policy struct {
	// DefaultTTL is the TTL to use when an endpoint specifies none.
	// If zero, responses are not cached.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// Methods lists the cacheable request methods.
	// If empty, GET and HEAD are cacheable.
	Methods []string
}

// DefaultPolicy returns the default caching policy.
// DefaultTTL: 300s, MaxTTL: none, Methods: GET and HEAD
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: DefaultTTL,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// Cacheable reports whether responses to method may be cached. It does not
// consider TTLs; a zero EffectiveTTL still disables caching.
func (p Policy) Cacheable(method string) bool {
	method = strings.ToUpper(method)
	if len(p.Methods) == 0 {
		return method == http.MethodGet || method == http.MethodHead
	}
	return slices.ContainsFunc(p.Methods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	// Use default if no override (or negative override)
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	// Clamp to MaxTTL if set
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
