// Package guard wraps API handlers in a fixed resilience pipeline.
//
// Every call to a guarded endpoint passes through, in order:
//
//  1. Rate limiting, keyed by the caller's client identifier and the
//     endpoint's effective quota.
//  2. Response caching for cacheable methods, keyed by method, path and
//     query unless the endpoint supplies its own key function.
//  3. The circuit breaker gate for the endpoint's service.
//  4. The handler, bounded by the endpoint timeout and recorded against
//     the circuit breaker exactly once.
//
// A rejected call never reaches a later stage. Handler errors are returned
// unchanged; rate limit and circuit rejections are reported as a Result
// with a retry hint.
//
// Router adapts endpoints to net/http, resolving clients with the identity
// package and writing the rejection, cache and quota headers.
// AdminHandler and Checkers expose component state for operators.
//
// # Usage
//
//	g := guard.New(guard.Config{}, guard.WithInstrumentation(inst))
//	defer g.Close()
//
//	rt, _ := guard.NewRouter(g, guard.WithResolver(resolver))
//	_ = rt.Handle(guard.Endpoint{
//	    Method:  "GET",
//	    Path:    "/users/{id}",
//	    Handler: getUser,
//	    Options: guard.Options{
//	        Cache:     guard.CacheOptions{TTL: time.Minute},
//	        RateLimit: guard.RateLimitOptions{Max: 10, Window: time.Minute},
//	    },
//	})
//	http.ListenAndServe(":8080", rt)
package guard
