// Package upstream forwards guarded calls to a backing HTTP API.
//
// A Proxy is a guard.HandlerFunc: the guard pipeline decides whether a call
// may proceed, and the proxy performs it. Upstream 5xx responses are
// returned as *StatusError so they count against the circuit breaker and
// are never cached.
package upstream
