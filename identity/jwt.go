package identity

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	// Secret is the HMAC signing key. JWT resolution is disabled when empty.
	Secret []byte

	// Issuer is the expected token issuer (iss claim). Optional.
	Issuer string

	// Audience is the expected token audience (aud claim). Optional.
	Audience string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

func (c JWTConfig) withDefaults() JWTConfig {
	if c.HeaderName == "" {
		c.HeaderName = "Authorization"
	}
	if c.TokenPrefix == "" {
		c.TokenPrefix = "Bearer "
	}
	return c
}

type jwtVerifier struct {
	config JWTConfig
	parser *jwt.Parser
}

func newJWTVerifier(config JWTConfig, now func() time.Time) *jwtVerifier {
	config = config.withDefaults()

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithTimeFunc(now),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}

	return &jwtVerifier{config: config, parser: jwt.NewParser(opts...)}
}

// token extracts the raw token from a header value.
func (v *jwtVerifier) token(header string) (string, bool) {
	raw, ok := strings.CutPrefix(header, v.config.TokenPrefix)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// verify parses and validates raw, returning its subject and claims.
func (v *jwtVerifier) verify(raw string) (string, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.config.Secret, nil
	})
	if err != nil {
		return "", nil, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", nil, err
	}
	if sub == "" {
		return "", nil, ErrMissingSubject
	}
	return sub, claims, nil
}
