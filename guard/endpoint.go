package guard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/apiguard/observe"
)

// HandlerFunc is the guarded operation. It must be safe for concurrent use.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Request is the transport-neutral view of an incoming call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// ClientID is the rate limiting identifier, typically from identity.Resolver.
	ClientID string

	// UserID is the authenticated subject, if any.
	UserID string

	CorrelationID string

	// PathValues holds wildcard values matched by the router.
	PathValues map[string]string
}

// PathValue returns the value of the named path wildcard.
func (r *Request) PathValue(name string) string {
	return r.PathValues[name]
}

// Response is a handler result. Cached responses are copied on the way in
// and out, so handlers may reuse their buffers.
type Response struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := &Response{Status: r.Status, Header: r.Header.Clone()}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

// RateLimitOptions overrides the default quota for one endpoint.
type RateLimitOptions struct {
	Disabled bool

	// Max and Window override the guard defaults when non-zero.
	Max    int
	Window time.Duration
}

// CacheOptions controls response caching for one endpoint.
type CacheOptions struct {
	Disabled bool

	// TTL overrides the default TTL when positive.
	TTL time.Duration

	// KeyFunc replaces the default request keyer.
	KeyFunc func(*Request) (string, error)
}

// CircuitOptions controls circuit breaking for one endpoint.
type CircuitOptions struct {
	Disabled bool

	// Service names the circuit. Endpoints sharing a service share a
	// circuit and should share its settings. Default: "METHOD path"
	Service string

	// FailureThreshold and RecoveryTimeout override the guard defaults
	// for this circuit when positive.
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// Options are the per-endpoint pipeline settings.
type Options struct {
	RateLimit      RateLimitOptions
	Cache          CacheOptions
	CircuitBreaker CircuitOptions

	// Timeout bounds the handler. A timed-out call counts as a breaker
	// failure. Zero means no timeout.
	Timeout time.Duration

	// Deprecated marks responses with a Deprecation header.
	Deprecated bool

	// Version is reported in the API-Version header.
	Version string
}

// Endpoint is a guarded route. It is copied on registration and must not
// be modified afterwards.
type Endpoint struct {
	Method  string
	Path    string
	Handler HandlerFunc
	Options Options
}

// Validate checks that the endpoint can be registered.
func (e *Endpoint) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil endpoint", ErrInvalidEndpoint)
	}
	if strings.TrimSpace(e.Method) == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidEndpoint)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidEndpoint, e.Path)
	}
	if e.Handler == nil {
		return fmt.Errorf("%w: %s %s has no handler", ErrInvalidEndpoint, e.Method, e.Path)
	}
	if e.Options.RateLimit.Max < 0 || e.Options.RateLimit.Window < 0 {
		return fmt.Errorf("%w: %s %s has a negative rate limit", ErrInvalidEndpoint, e.Method, e.Path)
	}
	if cb := e.Options.CircuitBreaker; cb.FailureThreshold < 0 || cb.RecoveryTimeout < 0 {
		return fmt.Errorf("%w: %s %s has negative circuit settings", ErrInvalidEndpoint, e.Method, e.Path)
	}
	if e.Options.Timeout < 0 {
		return fmt.Errorf("%w: %s %s has a negative timeout", ErrInvalidEndpoint, e.Method, e.Path)
	}
	return nil
}

// ID returns "METHOD path".
func (e *Endpoint) ID() string {
	return strings.ToUpper(e.Method) + " " + e.Path
}

// Service returns the circuit name for the endpoint.
func (e *Endpoint) Service() string {
	if e.Options.CircuitBreaker.Service != "" {
		return e.Options.CircuitBreaker.Service
	}
	return e.ID()
}

func (e *Endpoint) meta() observe.EndpointMeta {
	return observe.EndpointMeta{
		Method:  strings.ToUpper(e.Method),
		Route:   e.Path,
		Service: e.Service(),
		Version: e.Options.Version,
	}
}

func (e *Endpoint) clone() *Endpoint {
	out := *e
	out.Method = strings.ToUpper(e.Method)
	return &out
}
