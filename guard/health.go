package guard

import (
	"context"
	"fmt"

	"github.com/jonwraymond/apiguard/health"
	"github.com/jonwraymond/apiguard/resilience"
)

// Checkers returns health checks for the cache, the rate limiter and the
// circuit breaker. The circuit check is degraded while any circuit is open
// or half-open; the others always report healthy with their counters.
func (g *Guard) Checkers() []health.Checker {
	return []health.Checker{
		health.NewCheckerFunc("cache", func(context.Context) health.Result {
			s := g.cache.Stats()
			return health.Healthy("cache operational").WithDetails(map[string]any{
				"items":   s.Items,
				"hitRate": s.HitRate,
				"bytes":   s.TotalSizeBytes,
			})
		}),
		health.NewCheckerFunc("ratelimit", func(context.Context) health.Result {
			s := g.limiter.Stats()
			return health.Healthy("rate limiter operational").WithDetails(map[string]any{
				"activeWindows":   s.ActiveWindows,
				"blockedRequests": s.BlockedRequests,
			})
		}),
		health.NewCheckerFunc("circuits", func(context.Context) health.Result {
			var open, halfOpen []string
			for _, c := range g.breaker.AllStats() {
				switch c.State {
				case resilience.StateOpen:
					open = append(open, c.Service)
				case resilience.StateHalfOpen:
					halfOpen = append(halfOpen, c.Service)
				}
			}
			if len(open) == 0 && len(halfOpen) == 0 {
				return health.Healthy("all circuits closed")
			}
			return health.Degraded(fmt.Sprintf("%d open, %d half-open", len(open), len(halfOpen))).
				WithDetails(map[string]any{"open": open, "halfOpen": halfOpen})
		}),
	}
}
