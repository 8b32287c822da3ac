package identity

import "context"

// Method indicates how a client was identified.
type Method string

const (
	MethodJWT    Method = "jwt"
	MethodAPIKey Method = "api_key"
	MethodIP     Method = "ip"
)

// Client is the resolved caller of a request.
type Client struct {
	// ID is the rate limiting identifier, prefixed by source:
	// "user:<sub>", "key:<hash>" or "ip:<addr>".
	ID string

	// UserID is the token subject. Empty unless Method is MethodJWT.
	UserID string

	// KeyID is the registered API key ID. Empty unless Method is
	// MethodAPIKey.
	KeyID string

	Method Method

	// Claims holds the verified token claims.
	Claims map[string]any
}

type contextKey struct{}

// WithClient returns a new context carrying c.
func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ClientFromContext returns the client stored by WithClient.
func ClientFromContext(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(contextKey{}).(Client)
	return c, ok
}
