package config

import (
	"io"
	"strings"
	"time"

	"github.com/jonwraymond/apiguard/guard"
	"github.com/jonwraymond/apiguard/identity"
	"github.com/jonwraymond/apiguard/observe"
	"github.com/jonwraymond/apiguard/resilience"
	"github.com/jonwraymond/apiguard/upstream"
)

// ToGuard builds the guard configuration. A zero cleanupIntervalSeconds
// disables the background sweeps.
func (c *Config) ToGuard() (guard.Config, error) {
	window, err := resilience.ParseWindow(c.RateLimitWindow)
	if err != nil {
		return guard.Config{}, err
	}

	cleanup := time.Duration(c.CleanupIntervalSeconds) * time.Second
	if cleanup <= 0 {
		cleanup = -1
	}

	return guard.Config{
		Cache: guard.CacheConfig{
			Disabled:        !c.CacheEnabled,
			DefaultTTL:      seconds(c.CacheTTLSeconds),
			MaxTTL:          seconds(c.CacheMaxTTLSeconds),
			MaxSize:         c.CacheMaxSize,
			CleanupInterval: cleanup,
		},
		RateLimit: guard.RateLimitConfig{
			Disabled:        !c.RateLimitEnabled,
			Max:             c.RateLimitMax,
			Window:          window,
			CleanupInterval: cleanup,
		},
		Circuit: guard.CircuitConfig{
			Disabled:         !c.CircuitEnabled,
			FailureThreshold: c.CircuitFailureThreshold,
			RecoveryTimeout:  millis(c.CircuitRecoveryTimeoutMs),
			MonitoringPeriod: millis(c.CircuitMonitoringPeriodMs),
		},
	}, nil
}

// Options builds the guard options for one endpoint.
func (e EndpointConfig) Options() (guard.Options, error) {
	var window time.Duration
	if e.RateLimitWindow != "" {
		w, err := resilience.ParseWindow(e.RateLimitWindow)
		if err != nil {
			return guard.Options{}, err
		}
		window = w
	}

	return guard.Options{
		RateLimit: guard.RateLimitOptions{
			Disabled: e.RateLimitDisabled,
			Max:      e.RateLimitMax,
			Window:   window,
		},
		Cache: guard.CacheOptions{
			Disabled: e.CacheDisabled,
			TTL:      seconds(e.CacheTTLSeconds),
		},
		CircuitBreaker: guard.CircuitOptions{
			Disabled:         e.CircuitDisabled,
			Service:          e.CircuitService,
			FailureThreshold: e.CircuitFailureThreshold,
			RecoveryTimeout:  millis(e.CircuitRecoveryTimeoutMs),
		},
		Timeout:    millis(e.TimeoutMs),
		Deprecated: e.Deprecated,
		Version:    e.Version,
	}, nil
}

// GuardEndpoints builds every configured endpoint with handler.
func (c *Config) GuardEndpoints(handler guard.HandlerFunc) ([]guard.Endpoint, error) {
	out := make([]guard.Endpoint, 0, len(c.Endpoints))
	for _, e := range c.Endpoints {
		opts, err := e.Options()
		if err != nil {
			return nil, err
		}
		out = append(out, guard.Endpoint{
			Method:  e.Method,
			Path:    e.Path,
			Handler: handler,
			Options: opts,
		})
	}
	return out, nil
}

// ToIdentity builds the client resolver configuration.
func (c *Config) ToIdentity() identity.Config {
	cfg := identity.Config{
		JWT: identity.JWTConfig{
			Issuer:   c.Identity.JWTIssuer,
			Audience: c.Identity.JWTAudience,
		},
		APIKeyHeader:    c.Identity.APIKeyHeader,
		TrustedProxies:  c.Identity.TrustedProxies,
		TrustAllProxies: c.Identity.TrustAllProxies,
	}
	if c.Identity.JWTSecret != "" {
		cfg.JWT.Secret = []byte(c.Identity.JWTSecret)
	}
	if len(c.Identity.APIKeys) > 0 {
		store := identity.NewMemoryAPIKeyStore()
		for _, k := range c.Identity.APIKeys {
			store.Add(identity.APIKey{ID: k.ID, KeyHash: strings.ToLower(k.KeyHash)})
		}
		cfg.APIKeys = store
	}
	return cfg
}

// ToUpstream builds the proxy configuration.
func (c *Config) ToUpstream() upstream.Config {
	return upstream.Config{
		Target:     c.Upstream.Target,
		Timeout:    millis(c.Upstream.TimeoutMs),
		Retries:    c.Upstream.Retries,
		RetryDelay: millis(c.Upstream.RetryDelayMs),
	}
}

// ToObserve builds the telemetry configuration. Logs go to w, or stderr
// when w is nil. An empty or "none" exporter disables that signal.
func (c *Config) ToObserve(w io.Writer) observe.Config {
	o := c.Observability
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     o.Version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingExporter != "" && o.TracingExporter != "none",
			Exporter:  o.TracingExporter,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsExporter != "" && o.MetricsExporter != "none",
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   o.LogLevel,
			Output:  w,
		},
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
