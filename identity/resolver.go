package identity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIKeyHeader is the header read for API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// Config configures a Resolver.
type Config struct {
	JWT JWTConfig

	// APIKeyHeader is the header containing an API key.
	// Default: "X-API-Key". Set to "-" to disable.
	APIKeyHeader string

	// APIKeys verifies API keys. Without a store the API key header is
	// ignored. Unknown and expired keys fall through to the client IP.
	APIKeys APIKeyStore

	// TrustedProxies lists CIDRs or IPs whose forwarding headers are
	// honoured.
	TrustedProxies []string

	// TrustAllProxies honours forwarding headers from any peer.
	TrustAllProxies bool

	// Now returns the current time for token validation. Default: time.Now
	Now func() time.Time
}

// Resolver identifies the client behind a request.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Resolve never fails; every request resolves to some Client.
type Resolver struct {
	jwt          *jwtVerifier
	apiKeyHeader string
	apiKeys      APIKeyStore
	now          func() time.Time
	trustAll     bool
	trusted      []*net.IPNet
}

// NewResolver creates a Resolver, validating the trusted proxy list.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}

	r := &Resolver{
		apiKeyHeader: cfg.APIKeyHeader,
		apiKeys:      cfg.APIKeys,
		now:          cfg.Now,
		trustAll:     cfg.TrustAllProxies,
	}
	if r.apiKeyHeader == "-" || r.apiKeys == nil {
		r.apiKeyHeader = ""
	}
	if len(cfg.JWT.Secret) > 0 {
		r.jwt = newJWTVerifier(cfg.JWT, cfg.Now)
	}

	for _, entry := range cfg.TrustedProxies {
		network, err := parseNetwork(entry)
		if err != nil {
			return nil, err
		}
		r.trusted = append(r.trusted, network)
	}

	return r, nil
}

// Resolve identifies the client of req.
func (r *Resolver) Resolve(req *http.Request) Client {
	if r.jwt != nil {
		if raw, ok := r.jwt.token(req.Header.Get(r.jwt.config.HeaderName)); ok {
			if sub, claims, err := r.jwt.verify(raw); err == nil {
				return Client{
					ID:     "user:" + sub,
					UserID: sub,
					Method: MethodJWT,
					Claims: claims,
				}
			}
		}
	}

	if r.apiKeyHeader != "" {
		if key := strings.TrimSpace(req.Header.Get(r.apiKeyHeader)); key != "" {
			hash := HashAPIKey(key)
			if info := r.lookupKey(req.Context(), hash); info != nil {
				return Client{ID: "key:" + hash[:16], KeyID: info.ID, Method: MethodAPIKey}
			}
		}
	}

	return Client{ID: "ip:" + r.ClientIP(req), Method: MethodIP}
}

// lookupKey returns the registered, unexpired key with hash, or nil.
func (r *Resolver) lookupKey(ctx context.Context, hash string) *APIKey {
	info, err := r.apiKeys.Lookup(ctx, hash)
	if err != nil || info == nil {
		return nil
	}
	if !info.ExpiresAt.IsZero() && !r.now().Before(info.ExpiresAt) {
		return nil
	}
	return info
}

// ClientIP extracts the client IP from the request, honouring forwarding
// headers only from trusted proxies.
func (r *Resolver) ClientIP(req *http.Request) string {
	remoteIP := extractRemoteIP(req.RemoteAddr)

	if r.isTrustedProxy(remoteIP) {
		// X-Forwarded-For may hold a chain; the first entry is the client.
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	return remoteIP
}

func (r *Resolver) isTrustedProxy(ip string) bool {
	if r.trustAll {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range r.trusted {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseNetwork(entry string) (*net.IPNet, error) {
	entry = strings.TrimSpace(entry)
	if _, network, err := net.ParseCIDR(entry); err == nil {
		return network, nil
	}

	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, entry)
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// extractRemoteIP strips the port from RemoteAddr if present.
func extractRemoteIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return ip
}

