// Package health provides health checking primitives and HTTP check handlers.
//
// A Checker reports the Status of one component: Healthy, Degraded or
// Unhealthy. An Aggregator runs every registered checker in parallel under
// a shared timeout and folds the results into a Report.
//
//	agg := health.NewAggregator()
//	agg.Register(g.Checkers()...)
//	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{}))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// The liveness handler always answers 200. Readiness answers 200 while the
// overall status is healthy or degraded and 503 once any check is
// unhealthy; the detailed endpoint returns the full Report as JSON.
package health
