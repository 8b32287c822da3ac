package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func newTestResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r
}

func TestResolve_JWTSubject(t *testing.T) {
	r := newTestResolver(t, Config{JWT: JWTConfig{Secret: testSecret, Issuer: "apiguard"}})
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-42",
		"iss": "apiguard",
		"exp": testNow.Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest("GET", "/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	c := r.Resolve(req)
	assert.Equal(t, MethodJWT, c.Method)
	assert.Equal(t, "user:user-42", c.ID)
	assert.Equal(t, "user-42", c.UserID)
	assert.Equal(t, "apiguard", c.Claims["iss"])
}

func TestResolve_InvalidTokenFallsThrough(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		secret []byte
	}{
		{"wrong secret", jwt.MapClaims{"sub": "u", "iss": "apiguard", "aud": "api"}, []byte("other")},
		{"expired", jwt.MapClaims{"sub": "u", "iss": "apiguard", "aud": "api", "exp": testNow.Add(-time.Minute).Unix()}, testSecret},
		{"wrong issuer", jwt.MapClaims{"sub": "u", "iss": "someone-else", "aud": "api"}, testSecret},
		{"wrong audience", jwt.MapClaims{"sub": "u", "iss": "apiguard", "aud": "other"}, testSecret},
		{"no subject", jwt.MapClaims{"iss": "apiguard", "aud": "api"}, testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, Config{JWT: JWTConfig{
				Secret:   testSecret,
				Issuer:   "apiguard",
				Audience: "api",
			}})

			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "203.0.113.7:5555"
			req.Header.Set("Authorization", "Bearer "+signToken(t, tt.secret, tt.claims))

			c := r.Resolve(req)
			assert.Equal(t, MethodIP, c.Method)
			assert.Equal(t, "ip:203.0.113.7", c.ID)
			assert.Empty(t, c.UserID)
		})
	}
}

func TestResolve_JWTDisabledWithoutSecret(t *testing.T) {
	r := newTestResolver(t, Config{})
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.1:80"
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, jwt.MapClaims{"sub": "u"}))

	assert.Equal(t, "ip:198.51.100.1", r.Resolve(req).ID)
}

func TestResolve_APIKeyIsHashed(t *testing.T) {
	store := NewMemoryAPIKeyStore(APIKey{ID: "partner", KeyHash: HashAPIKey("super-secret-key")})
	r := newTestResolver(t, Config{APIKeys: store})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-API-Key", "super-secret-key")

	c := r.Resolve(req)
	assert.Equal(t, MethodAPIKey, c.Method)
	assert.Equal(t, "partner", c.KeyID)
	assert.NotContains(t, c.ID, "super-secret-key")
	assert.Equal(t, "key:"+HashAPIKey("super-secret-key")[:16], c.ID)

	// Same key, same identity.
	req2 := httptest.NewRequest("GET", "/other", nil)
	req2.Header.Set("X-API-Key", " super-secret-key ")
	assert.Equal(t, c.ID, r.Resolve(req2).ID)
}

func TestResolve_UnverifiedAPIKeyFallsThrough(t *testing.T) {
	store := NewMemoryAPIKeyStore(
		APIKey{ID: "live", KeyHash: HashAPIKey("live-key")},
		APIKey{ID: "old", KeyHash: HashAPIKey("old-key"), ExpiresAt: testNow},
	)

	tests := []struct {
		name string
		cfg  Config
		key  string
	}{
		{"unknown key", Config{APIKeys: store}, "made-up"},
		{"expired key", Config{APIKeys: store}, "old-key"},
		{"no store", Config{}, "live-key"},
		{"header disabled", Config{APIKeys: store, APIKeyHeader: "-"}, "live-key"},
		{"store error", Config{APIKeys: failingStore{}}, "live-key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, tt.cfg)

			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = "192.0.2.10:1234"
			req.Header.Set("X-API-Key", tt.key)

			c := r.Resolve(req)
			assert.Equal(t, MethodIP, c.Method)
			assert.Equal(t, "ip:192.0.2.10", c.ID)
			assert.Empty(t, c.KeyID)
		})
	}
}

func TestResolve_CustomAPIKeyHeader(t *testing.T) {
	store := NewMemoryAPIKeyStore(APIKey{ID: "svc", KeyHash: HashAPIKey("k")})
	r := newTestResolver(t, Config{APIKeys: store, APIKeyHeader: "X-Service-Token"})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Service-Token", "k")

	assert.Equal(t, "svc", r.Resolve(req).KeyID)
}

func TestMemoryAPIKeyStore(t *testing.T) {
	store := NewMemoryAPIKeyStore()
	hash := HashAPIKey("k")

	store.Add(APIKey{ID: "a", KeyHash: hash})
	got, err := store.Lookup(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, 1, store.Len())

	store.Remove(hash)
	got, err = store.Lookup(context.Background(), hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHashAPIKey(t *testing.T) {
	assert.Equal(t, "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae", HashAPIKey("foo"))
}

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (*APIKey, error) {
	return nil, errors.New("store unavailable")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		trustAll   bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr without proxy",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
		{
			name:       "untrusted peer forwarding headers ignored",
			remoteAddr: "192.0.2.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			want:       "192.0.2.1",
		},
		{
			name:       "trusted cidr uses first forwarded entry",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.2"},
			want:       "203.0.113.5",
		},
		{
			name:       "trusted single ip falls back to x-real-ip",
			trusted:    []string{"10.1.2.3"},
			remoteAddr: "10.1.2.3:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "invalid forwarded value ignored",
			trustAll:   true,
			remoteAddr: "10.1.2.3:1234",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "10.1.2.3",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.0.2.44",
			want:       "192.0.2.44",
		},
		{
			name:       "ipv6 peer",
			trusted:    []string{"::1"},
			remoteAddr: "[::1]:8080",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8::1"},
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, Config{TrustedProxies: tt.trusted, TrustAllProxies: tt.trustAll})

			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, r.ClientIP(req))
		})
	}
}

func TestNewResolver_InvalidProxy(t *testing.T) {
	_, err := NewResolver(Config{TrustedProxies: []string{"10.0.0.0/8", "bogus"}})
	require.ErrorIs(t, err, ErrInvalidProxy)
	assert.Contains(t, err.Error(), "bogus")
}

func TestClientContext(t *testing.T) {
	ctx := context.Background()

	_, ok := ClientFromContext(ctx)
	assert.False(t, ok)

	want := Client{ID: "user:u1", UserID: "u1", Method: MethodJWT}
	got, ok := ClientFromContext(WithClient(ctx, want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}
