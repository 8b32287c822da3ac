package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/jonwraymond/apiguard/identity"
	"github.com/jonwraymond/apiguard/resilience"
	"github.com/jonwraymond/apiguard/upstream"
)

// Methods accepted in endpoint definitions.
var validMethods = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// Paths served by apiguard itself. Entries ending in / reserve the subtree.
var reservedPaths = []string{"/healthz", "/readyz", "/health", "/health/", "/metrics", "/admin", "/admin/"}

// Validate checks every option, including all window strings, so that
// misconfiguration fails at startup rather than on the first request. The
// returned error matches ErrInvalid and lists each problem.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.CacheTTLSeconds <= 0 {
		add("cacheTtlSeconds must be positive, got %d", c.CacheTTLSeconds)
	}
	if c.CacheMaxSize <= 0 {
		add("cacheMaxSize must be positive, got %d", c.CacheMaxSize)
	}
	if c.CacheMaxTTLSeconds < 0 {
		add("cacheMaxTtlSeconds must not be negative, got %d", c.CacheMaxTTLSeconds)
	}
	if c.RateLimitMax <= 0 {
		add("rateLimitMax must be positive, got %d", c.RateLimitMax)
	}
	if _, err := resilience.ParseWindow(c.RateLimitWindow); err != nil {
		add("rateLimitWindow: %w", err)
	}
	if c.CircuitFailureThreshold <= 0 {
		add("circuitFailureThreshold must be positive, got %d", c.CircuitFailureThreshold)
	}
	if c.CircuitRecoveryTimeoutMs <= 0 {
		add("circuitRecoveryTimeoutMs must be positive, got %d", c.CircuitRecoveryTimeoutMs)
	}
	if c.CircuitMonitoringPeriodMs <= 0 {
		add("circuitMonitoringPeriodMs must be positive, got %d", c.CircuitMonitoringPeriodMs)
	}
	if c.CleanupIntervalSeconds < 0 {
		add("cleanupIntervalSeconds must not be negative, got %d", c.CleanupIntervalSeconds)
	}

	if c.Upstream.Retries < 0 {
		add("upstream.retries must not be negative, got %d", c.Upstream.Retries)
	}
	if c.Upstream.Target != "" {
		if _, err := upstream.New(c.ToUpstream()); err != nil {
			add("upstream.target: %w", err)
		}
	}
	if _, err := identity.NewResolver(c.ToIdentity()); err != nil {
		add("identity.trustedProxies: %w", err)
	}
	keys := make(map[string]bool, len(c.Identity.APIKeys))
	for i, k := range c.Identity.APIKeys {
		if strings.TrimSpace(k.ID) == "" {
			add("identity.apiKeys[%d]: id is required", i)
		}
		hash := strings.ToLower(k.KeyHash)
		if !isSHA256Hex(hash) {
			add("identity.apiKeys[%d]: keyHash must be a SHA-256 hex digest", i)
		} else if keys[hash] {
			add("identity.apiKeys[%d]: duplicate keyHash", i)
		}
		keys[hash] = true
	}
	obs := c.ToObserve(nil)
	if err := obs.Validate(); err != nil {
		add("observability: %w", err)
	}

	seen := make(map[string]bool, len(c.Endpoints))
	routes := http.NewServeMux()
	for i, e := range c.Endpoints {
		errs = append(errs, validateEndpoint(i, e, seen, routes)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalid}, errs...)...)
}

func validateEndpoint(i int, e EndpointConfig, seen map[string]bool, routes *http.ServeMux) []error {
	var errs []error
	name := fmt.Sprintf("endpoints[%d]", i)
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(name+": "+format, args...))
	}

	if !slices.Contains(validMethods, strings.ToUpper(e.Method)) {
		add("unsupported method %q", e.Method)
	}
	if !strings.HasPrefix(e.Path, "/") {
		add("path %q must start with /", e.Path)
	} else if isReserved(e.Path) {
		add("path %q is reserved", e.Path)
	}
	if id := e.ID(); seen[id] {
		add("duplicate endpoint %s", id)
	} else {
		seen[id] = true
		if len(errs) == 0 {
			if err := checkPattern(routes, id); err != nil {
				add("%v", err)
			}
		}
	}

	if e.RateLimitWindow != "" {
		if _, err := resilience.ParseWindow(e.RateLimitWindow); err != nil {
			add("rateLimitWindow: %w", err)
		}
	}
	if e.RateLimitMax < 0 {
		add("rateLimitMax must not be negative, got %d", e.RateLimitMax)
	}
	if e.CacheTTLSeconds < 0 {
		add("cacheTtlSeconds must not be negative, got %d", e.CacheTTLSeconds)
	}
	if e.TimeoutMs < 0 {
		add("timeoutMs must not be negative, got %d", e.TimeoutMs)
	}
	if e.CircuitFailureThreshold < 0 {
		add("circuitFailureThreshold must not be negative, got %d", e.CircuitFailureThreshold)
	}
	if e.CircuitRecoveryTimeoutMs < 0 {
		add("circuitRecoveryTimeoutMs must not be negative, got %d", e.CircuitRecoveryTimeoutMs)
	}
	return errs
}

func isReserved(path string) bool {
	for _, r := range reservedPaths {
		if path == r || (strings.HasSuffix(r, "/") && strings.HasPrefix(path, r)) {
			return true
		}
	}
	return false
}

// checkPattern registers pattern on routes, turning the ServeMux panic for
// malformed or conflicting patterns into an error.
func checkPattern(routes *http.ServeMux, pattern string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	routes.HandleFunc(pattern, func(http.ResponseWriter, *http.Request) {})
	return nil
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
