package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. APIGUARD_RATELIMITMAX or
// APIGUARD_UPSTREAM_TARGET.
const EnvPrefix = "APIGUARD"

// Default option values.
const (
	DefaultAddr                     = ":8080"
	DefaultCacheTTLSeconds          = 300
	DefaultCacheMaxSize             = 1000
	DefaultRateLimitMax             = 100
	DefaultRateLimitWindow          = "15 minutes"
	DefaultCircuitFailureThreshold  = 5
	DefaultCircuitRecoveryTimeoutMs = 60000
	DefaultCircuitMonitoringMs      = 600000
	DefaultCleanupIntervalSeconds   = 60
	DefaultServiceName              = "apiguard"
	DefaultLogLevel                 = "info"
)

// Config is the file and environment configuration of an apiguard server.
type Config struct {
	CacheEnabled       bool `mapstructure:"cacheEnabled" yaml:"cacheEnabled"`
	CacheTTLSeconds    int  `mapstructure:"cacheTtlSeconds" yaml:"cacheTtlSeconds"`
	CacheMaxSize       int  `mapstructure:"cacheMaxSize" yaml:"cacheMaxSize"`
	CacheMaxTTLSeconds int  `mapstructure:"cacheMaxTtlSeconds" yaml:"cacheMaxTtlSeconds,omitempty"`

	RateLimitEnabled bool   `mapstructure:"rateLimitEnabled" yaml:"rateLimitEnabled"`
	RateLimitMax     int    `mapstructure:"rateLimitMax" yaml:"rateLimitMax"`
	RateLimitWindow  string `mapstructure:"rateLimitWindow" yaml:"rateLimitWindow"`

	CircuitEnabled            bool `mapstructure:"circuitEnabled" yaml:"circuitEnabled"`
	CircuitFailureThreshold   int  `mapstructure:"circuitFailureThreshold" yaml:"circuitFailureThreshold"`
	CircuitRecoveryTimeoutMs  int  `mapstructure:"circuitRecoveryTimeoutMs" yaml:"circuitRecoveryTimeoutMs"`
	CircuitMonitoringPeriodMs int  `mapstructure:"circuitMonitoringPeriodMs" yaml:"circuitMonitoringPeriodMs"`

	// CleanupIntervalSeconds is the cache and rate limiter sweep period.
	CleanupIntervalSeconds int `mapstructure:"cleanupIntervalSeconds" yaml:"cleanupIntervalSeconds"`

	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Upstream      UpstreamConfig      `mapstructure:"upstream" yaml:"upstream"`
	Identity      IdentityConfig      `mapstructure:"identity" yaml:"identity"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`

	Endpoints []EndpointConfig `mapstructure:"endpoints" yaml:"endpoints"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string `mapstructure:"addr" yaml:"addr"`
	AdminEnabled      bool   `mapstructure:"adminEnabled" yaml:"adminEnabled"`
	MaxBodyBytes      int64  `mapstructure:"maxBodyBytes" yaml:"maxBodyBytes,omitempty"`
	ShutdownTimeoutMs int    `mapstructure:"shutdownTimeoutMs" yaml:"shutdownTimeoutMs"`
}

// UpstreamConfig configures the proxied API.
type UpstreamConfig struct {
	Target     string `mapstructure:"target" yaml:"target"`
	TimeoutMs  int    `mapstructure:"timeoutMs" yaml:"timeoutMs,omitempty"`
	HealthPath string `mapstructure:"healthPath" yaml:"healthPath,omitempty"`

	// Retries re-sends GET and HEAD requests that failed without a response.
	Retries      int `mapstructure:"retries" yaml:"retries,omitempty"`
	RetryDelayMs int `mapstructure:"retryDelayMs" yaml:"retryDelayMs,omitempty"`
}

// IdentityConfig configures client resolution.
type IdentityConfig struct {
	JWTSecret       string   `mapstructure:"jwtSecret" yaml:"jwtSecret,omitempty"`
	JWTIssuer       string   `mapstructure:"jwtIssuer" yaml:"jwtIssuer,omitempty"`
	JWTAudience     string   `mapstructure:"jwtAudience" yaml:"jwtAudience,omitempty"`
	APIKeyHeader    string   `mapstructure:"apiKeyHeader" yaml:"apiKeyHeader,omitempty"`
	TrustedProxies  []string `mapstructure:"trustedProxies" yaml:"trustedProxies,omitempty"`
	TrustAllProxies bool     `mapstructure:"trustAllProxies" yaml:"trustAllProxies,omitempty"`

	// APIKeys lists the keys clients may be identified by. Requests
	// carrying any other key are keyed by IP.
	APIKeys []APIKeyConfig `mapstructure:"apiKeys" yaml:"apiKeys,omitempty"`
}

// APIKeyConfig registers one API key by the SHA-256 hex digest of its value.
type APIKeyConfig struct {
	ID      string `mapstructure:"id" yaml:"id"`
	KeyHash string `mapstructure:"keyHash" yaml:"keyHash"`
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	ServiceName     string  `mapstructure:"serviceName" yaml:"serviceName"`
	Version         string  `mapstructure:"version" yaml:"version,omitempty"`
	LogLevel        string  `mapstructure:"logLevel" yaml:"logLevel"`
	TracingExporter string  `mapstructure:"tracingExporter" yaml:"tracingExporter,omitempty"`
	SamplePct       float64 `mapstructure:"samplePct" yaml:"samplePct,omitempty"`
	MetricsExporter string  `mapstructure:"metricsExporter" yaml:"metricsExporter,omitempty"`
}

// EndpointConfig overrides options for one route. Zero values inherit the
// global settings.
type EndpointConfig struct {
	Method string `mapstructure:"method" yaml:"method"`
	Path   string `mapstructure:"path" yaml:"path"`

	CacheTTLSeconds   int    `mapstructure:"cacheTtlSeconds" yaml:"cacheTtlSeconds,omitempty"`
	CacheDisabled     bool   `mapstructure:"cacheDisabled" yaml:"cacheDisabled,omitempty"`
	RateLimitMax      int    `mapstructure:"rateLimitMax" yaml:"rateLimitMax,omitempty"`
	RateLimitWindow   string `mapstructure:"rateLimitWindow" yaml:"rateLimitWindow,omitempty"`
	RateLimitDisabled bool   `mapstructure:"rateLimitDisabled" yaml:"rateLimitDisabled,omitempty"`
	CircuitService    string `mapstructure:"circuitService" yaml:"circuitService,omitempty"`
	CircuitDisabled   bool   `mapstructure:"circuitDisabled" yaml:"circuitDisabled,omitempty"`

	CircuitFailureThreshold  int `mapstructure:"circuitFailureThreshold" yaml:"circuitFailureThreshold,omitempty"`
	CircuitRecoveryTimeoutMs int `mapstructure:"circuitRecoveryTimeoutMs" yaml:"circuitRecoveryTimeoutMs,omitempty"`

	TimeoutMs  int    `mapstructure:"timeoutMs" yaml:"timeoutMs,omitempty"`
	Deprecated bool   `mapstructure:"deprecated" yaml:"deprecated,omitempty"`
	Version    string `mapstructure:"version" yaml:"version,omitempty"`
}

// ID returns "METHOD path".
func (e EndpointConfig) ID() string {
	return strings.ToUpper(e.Method) + " " + e.Path
}

// Load reads configuration from path (YAML or JSON), applies defaults and
// APIGUARD_* environment overrides, and expands ${VAR} references in the
// file. An empty path loads defaults and environment only.
//
// Load does not validate; call Validate before use.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded, err := ExpandEnv(string(raw))
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}

		v.SetConfigType(configType(path))
		if err := v.ReadConfig(bytes.NewReader([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load produces without a file or
// environment overrides.
func Default() *Config {
	return &Config{
		CacheEnabled:              true,
		CacheTTLSeconds:           DefaultCacheTTLSeconds,
		CacheMaxSize:              DefaultCacheMaxSize,
		RateLimitEnabled:          true,
		RateLimitMax:              DefaultRateLimitMax,
		RateLimitWindow:           DefaultRateLimitWindow,
		CircuitEnabled:            true,
		CircuitFailureThreshold:   DefaultCircuitFailureThreshold,
		CircuitRecoveryTimeoutMs:  DefaultCircuitRecoveryTimeoutMs,
		CircuitMonitoringPeriodMs: DefaultCircuitMonitoringMs,
		CleanupIntervalSeconds:    DefaultCleanupIntervalSeconds,
		Server: ServerConfig{
			Addr:              DefaultAddr,
			AdminEnabled:      true,
			ShutdownTimeoutMs: 10000,
		},
		Upstream: UpstreamConfig{
			HealthPath: "/healthz",
		},
		Observability: ObservabilityConfig{
			ServiceName: DefaultServiceName,
			LogLevel:    DefaultLogLevel,
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("cacheEnabled", d.CacheEnabled)
	v.SetDefault("cacheTtlSeconds", d.CacheTTLSeconds)
	v.SetDefault("cacheMaxSize", d.CacheMaxSize)
	v.SetDefault("cacheMaxTtlSeconds", 0)
	v.SetDefault("rateLimitEnabled", d.RateLimitEnabled)
	v.SetDefault("rateLimitMax", d.RateLimitMax)
	v.SetDefault("rateLimitWindow", d.RateLimitWindow)
	v.SetDefault("circuitEnabled", d.CircuitEnabled)
	v.SetDefault("circuitFailureThreshold", d.CircuitFailureThreshold)
	v.SetDefault("circuitRecoveryTimeoutMs", d.CircuitRecoveryTimeoutMs)
	v.SetDefault("circuitMonitoringPeriodMs", d.CircuitMonitoringPeriodMs)
	v.SetDefault("cleanupIntervalSeconds", d.CleanupIntervalSeconds)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.adminEnabled", d.Server.AdminEnabled)
	v.SetDefault("server.maxBodyBytes", 0)
	v.SetDefault("server.shutdownTimeoutMs", d.Server.ShutdownTimeoutMs)

	v.SetDefault("upstream.target", "")
	v.SetDefault("upstream.timeoutMs", 0)
	v.SetDefault("upstream.healthPath", d.Upstream.HealthPath)
	v.SetDefault("upstream.retries", 0)
	v.SetDefault("upstream.retryDelayMs", 0)

	v.SetDefault("identity.jwtSecret", "")
	v.SetDefault("identity.jwtIssuer", "")
	v.SetDefault("identity.jwtAudience", "")
	v.SetDefault("identity.apiKeyHeader", "")
	v.SetDefault("identity.trustedProxies", []string{})
	v.SetDefault("identity.trustAllProxies", false)

	v.SetDefault("observability.serviceName", d.Observability.ServiceName)
	v.SetDefault("observability.version", "")
	v.SetDefault("observability.logLevel", d.Observability.LogLevel)
	v.SetDefault("observability.tracingExporter", "")
	v.SetDefault("observability.samplePct", 0.0)
	v.SetDefault("observability.metricsExporter", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}
