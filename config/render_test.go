package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_RedactsSecret(t *testing.T) {
	cfg := Default()
	cfg.Identity.JWTSecret = "s3cret"

	out, err := cfg.Render()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "s3cret")
	assert.Contains(t, string(out), redacted)
	assert.Equal(t, "s3cret", cfg.Identity.JWTSecret, "Render must not modify the receiver")
}

func TestRender_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.RateLimitMax = 42
	cfg.Upstream.Target = "http://localhost:9000"
	cfg.Endpoints = []EndpointConfig{{Method: "GET", Path: "/users/{id}", CacheTTLSeconds: 30}}

	out, err := cfg.Render()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rendered.yaml")
	require.NoError(t, os.WriteFile(path, out, 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.RateLimitMax)
	assert.Equal(t, cfg.Upstream.Target, loaded.Upstream.Target)
	assert.Equal(t, cfg.Endpoints, loaded.Endpoints)
	require.NoError(t, loaded.Validate())
}
