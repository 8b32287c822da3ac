package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/apiguard/resilience"
)

func TestValidate_Default(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero cache ttl", func(c *Config) { c.CacheTTLSeconds = 0 }, "cacheTtlSeconds"},
		{"zero cache size", func(c *Config) { c.CacheMaxSize = 0 }, "cacheMaxSize"},
		{"zero rate limit", func(c *Config) { c.RateLimitMax = 0 }, "rateLimitMax"},
		{"bad window", func(c *Config) { c.RateLimitWindow = "fortnight" }, "rateLimitWindow"},
		{"zero threshold", func(c *Config) { c.CircuitFailureThreshold = 0 }, "circuitFailureThreshold"},
		{"zero recovery", func(c *Config) { c.CircuitRecoveryTimeoutMs = 0 }, "circuitRecoveryTimeoutMs"},
		{"negative cleanup", func(c *Config) { c.CleanupIntervalSeconds = -1 }, "cleanupIntervalSeconds"},
		{"negative retries", func(c *Config) { c.Upstream.Retries = -1 }, "upstream.retries"},
		{"bad upstream", func(c *Config) { c.Upstream.Target = "ftp://files" }, "upstream.target"},
		{"bad proxy", func(c *Config) { c.Identity.TrustedProxies = []string{"gateway"} }, "trustedProxies"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "observability"},
		{"bad exporter", func(c *Config) { c.Observability.MetricsExporter = "graphite" }, "observability"},
		{"bad method", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "FETCH", Path: "/a"}}
		}, "unsupported method"},
		{"relative path", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "a"}}
		}, "must start with /"},
		{"duplicate endpoint", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/a"}, {Method: "get", Path: "/a"}}
		}, "duplicate endpoint GET /a"},
		{"bad endpoint window", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/a", RateLimitWindow: "5 weeks"}}
		}, "endpoints[0]: rateLimitWindow"},
		{"negative timeout", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/a", TimeoutMs: -5}}
		}, "timeoutMs"},
		{"negative endpoint threshold", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/a", CircuitFailureThreshold: -1}}
		}, "endpoints[0]: circuitFailureThreshold"},
		{"negative endpoint recovery", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/a", CircuitRecoveryTimeoutMs: -1}}
		}, "endpoints[0]: circuitRecoveryTimeoutMs"},
		{"liveness path", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/healthz"}}
		}, `path "/healthz" is reserved`},
		{"admin subtree", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "POST", Path: "/admin/cache/clear"}}
		}, "is reserved"},
		{"metrics path", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/metrics"}}
		}, "is reserved"},
		{"conflicting wildcards", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/items/{id}"}, {Method: "GET", Path: "/items/{name}"}}
		}, "endpoints[1]: pattern"},
		{"malformed wildcard", func(c *Config) {
			c.Endpoints = []EndpointConfig{{Method: "GET", Path: "/items/{"}}
		}, "endpoints[0]:"},
		{"api key without id", func(c *Config) {
			c.Identity.APIKeys = []APIKeyConfig{{KeyHash: strings.Repeat("a", 64)}}
		}, "identity.apiKeys[0]: id is required"},
		{"api key raw value", func(c *Config) {
			c.Identity.APIKeys = []APIKeyConfig{{ID: "a", KeyHash: "my-secret-key"}}
		}, "SHA-256 hex digest"},
		{"duplicate api key", func(c *Config) {
			c.Identity.APIKeys = []APIKeyConfig{
				{ID: "a", KeyHash: strings.Repeat("b", 64)},
				{ID: "b", KeyHash: strings.Repeat("B", 64)},
			}
		}, "identity.apiKeys[1]: duplicate keyHash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.RateLimitWindow = "soon"
	cfg.CacheMaxSize = -1
	cfg.Endpoints = []EndpointConfig{{Method: "GET", Path: "/a", RateLimitWindow: "later"}}

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, err, resilience.ErrInvalidWindow)
	assert.Contains(t, err.Error(), "cacheMaxSize")
	assert.Contains(t, err.Error(), `"soon"`)
	assert.Contains(t, err.Error(), `"later"`)
}
