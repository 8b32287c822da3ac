package guard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/apiguard/identity"
)

// Response headers written by the router.
const (
	HeaderCorrelationID      = "X-Correlation-ID"
	HeaderCache              = "X-Cache"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
	HeaderDeprecation        = "Deprecation"
	HeaderAPIVersion         = "API-Version"
)

// DefaultMaxBodyBytes bounds request bodies read by the router.
const DefaultMaxBodyBytes = 1 << 20

// Router serves guarded endpoints over HTTP.
type Router struct {
	guard    *Guard
	mux      *http.ServeMux
	resolver *identity.Resolver
	maxBody  int64

	mu        sync.Mutex
	endpoints map[string]*Endpoint
	order     []string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithResolver sets the client resolver. Default: IP based resolution
// without trusted proxies.
func WithResolver(r *identity.Resolver) RouterOption {
	return func(rt *Router) { rt.resolver = r }
}

// WithMux registers routes on mux instead of a private one.
func WithMux(mux *http.ServeMux) RouterOption {
	return func(rt *Router) { rt.mux = mux }
}

// WithMaxBodyBytes bounds request bodies. Default: 1 MiB
func WithMaxBodyBytes(n int64) RouterOption {
	return func(rt *Router) { rt.maxBody = n }
}

// NewRouter creates a router serving endpoints through g.
func NewRouter(g *Guard, opts ...RouterOption) (*Router, error) {
	rt := &Router{
		guard:     g,
		maxBody:   DefaultMaxBodyBytes,
		endpoints: make(map[string]*Endpoint),
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.mux == nil {
		rt.mux = http.NewServeMux()
	}
	if rt.resolver == nil {
		r, err := identity.NewResolver(identity.Config{})
		if err != nil {
			return nil, err
		}
		rt.resolver = r
	}
	return rt, nil
}

// Handle registers ep under the pattern "METHOD path".
func (rt *Router) Handle(ep Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	e := ep.clone()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	id := e.ID()
	if _, exists := rt.endpoints[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEndpoint, id)
	}
	if err := register(rt.mux, id, rt.serve(e, wildcardNames(e.Path))); err != nil {
		return err
	}
	rt.endpoints[id] = e
	rt.order = append(rt.order, id)
	return nil
}

// register adds pattern to mux, reporting malformed or conflicting
// patterns as ErrInvalidEndpoint instead of panicking. ServeMux rejects a
// pattern before changing any state, so mux is unchanged on error.
func register(mux *http.ServeMux, pattern string, h http.HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidEndpoint, r)
		}
	}()
	mux.HandleFunc(pattern, h)
	return nil
}

// Endpoints returns the registered endpoints in registration order.
func (rt *Router) Endpoints() []Endpoint {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	out := make([]Endpoint, 0, len(rt.order))
	for _, id := range rt.order {
		out = append(out, *rt.endpoints[id])
	}
	return out
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) serve(ep *Endpoint, wildcards []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, correlationID)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large", 0)
				return
			}
			writeError(w, http.StatusBadRequest, "unreadable request body", 0)
			return
		}

		client := rt.resolver.Resolve(r)
		ctx := identity.WithClient(r.Context(), client)

		req := &Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Header:        r.Header,
			Body:          body,
			ClientID:      client.ID,
			UserID:        client.UserID,
			CorrelationID: correlationID,
		}
		if len(wildcards) > 0 {
			req.PathValues = make(map[string]string, len(wildcards))
			for _, name := range wildcards {
				req.PathValues[name] = r.PathValue(name)
			}
		}

		res, err := rt.guard.Invoke(ctx, ep, req)
		if res == nil {
			status := StatusOf(err)
			writeError(w, status, strings.ToLower(http.StatusText(status)), 0)
			return
		}
		writeResult(w, ep, res, err)
	}
}

func writeResult(w http.ResponseWriter, ep *Endpoint, res *Result, err error) {
	h := w.Header()
	if q := res.Quota; q != nil {
		h.Set(HeaderRateLimitLimit, strconv.Itoa(q.Limit))
		h.Set(HeaderRateLimitRemaining, strconv.Itoa(q.Remaining))
		h.Set(HeaderRateLimitReset, strconv.FormatInt(q.ResetAt.Unix(), 10))
	}
	if ep.Options.Deprecated {
		h.Set(HeaderDeprecation, "true")
	}
	if ep.Options.Version != "" {
		h.Set(HeaderAPIVersion, ep.Options.Version)
	}
	if res.CacheStatus != "" {
		h.Set(HeaderCache, res.CacheStatus)
	}

	switch res.Outcome {
	case OutcomeRateLimited:
		writeError(w, res.Status, "rate limit exceeded", res.RetryAfter)
	case OutcomeCircuitOpen:
		writeError(w, res.Status, "service unavailable", res.RetryAfter)
	case OutcomeFailed:
		writeError(w, res.Status, clientMessage(err, res.Status), 0)
	default:
		resp := res.Response
		for k, vs := range resp.Header {
			for _, v := range vs {
				h.Add(k, v)
			}
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	}
}

// clientMessage returns the text shown for a failed call. Only messages
// set explicitly on an HTTPError reach the client.
func clientMessage(err error, status int) string {
	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" && status < 500 {
		return he.Message
	}
	return strings.ToLower(http.StatusText(status))
}

type errorBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string, retryAfter time.Duration) {
	body := errorBody{Error: message}
	if retryAfter > 0 {
		body.RetryAfter = retrySeconds(retryAfter)
		w.Header().Set(HeaderRetryAfter, strconv.FormatInt(body.RetryAfter, 10))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Del("Content-Length")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// retrySeconds rounds d up to whole seconds, at least 1.
func retrySeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// wildcardNames returns the names of {name} and {name...} segments.
func wildcardNames(path string) []string {
	var names []string
	for seg := range strings.SplitSeq(path, "/") {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimSuffix(seg[1:len(seg)-1], "..."), "$")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
