package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/apiguard/guard"
	"github.com/jonwraymond/apiguard/health"
	"github.com/jonwraymond/apiguard/resilience"
)

// Default proxy values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// ErrInvalidTarget is returned when the upstream URL cannot be used.
var ErrInvalidTarget = errors.New("upstream: invalid target")

var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
}

// StatusError reports an upstream server error response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: responded %d", e.Status)
}

// StatusCode implements guard.StatusCoder.
func (e *StatusError) StatusCode() int { return e.Status }

// Config configures a Proxy.
type Config struct {
	// Target is the base URL, e.g. http://users-api:8080/v1.
	Target string

	// Timeout bounds one upstream round trip. Default: 30s
	Timeout time.Duration

	// MaxBodySize bounds the buffered response body. Default: 10MB
	MaxBodySize int64

	// Retries is the number of extra attempts for GET and HEAD requests
	// whose round trip failed without a response. Default: 0
	Retries int

	// RetryDelay is the first backoff wait. Default: 100ms
	RetryDelay time.Duration

	// Transport overrides the HTTP transport. Optional.
	Transport http.RoundTripper
}

// Proxy forwards requests to one upstream.
type Proxy struct {
	target  *url.URL
	client  *http.Client
	maxBody int64
	retry   *resilience.Retry
}

// New creates a proxy for cfg.Target.
func New(cfg Config) (*Proxy, error) {
	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, fmt.Errorf("%w: %q needs an http(s) scheme and host", ErrInvalidTarget, cfg.Target)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	p := &Proxy{
		target:  target,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxBody: cfg.MaxBodySize,
	}
	if cfg.Retries > 0 {
		p.retry = resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.Retries + 1,
			InitialDelay: cfg.RetryDelay,
			Jitter:       true,
			RetryIf:      retryable,
		})
	}
	return p, nil
}

// Target returns the upstream base URL.
func (p *Proxy) Target() string {
	return p.target.String()
}

// Handle forwards req and buffers the response. It satisfies
// guard.HandlerFunc.
func (p *Proxy) Handle(ctx context.Context, req *guard.Request) (*guard.Response, error) {
	var resp *http.Response
	send := func(ctx context.Context) error {
		out, err := http.NewRequestWithContext(ctx, req.Method, p.url(req), bytes.NewReader(req.Body))
		if err != nil {
			return err
		}
		copyHeaders(out.Header, req.Header)
		removeHopByHopHeaders(out.Header)
		if req.CorrelationID != "" {
			out.Header.Set(guard.HeaderCorrelationID, req.CorrelationID)
		}
		resp, err = p.client.Do(out)
		return err
	}

	var err error
	if p.retry != nil && idempotent(req.Method) {
		err = p.retry.Execute(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, guard.NewHTTPError(http.StatusGatewayTimeout, "upstream timed out", err)
		}
		return nil, guard.NewHTTPError(http.StatusBadGateway, "upstream unavailable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxBody))
		return nil, &StatusError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody))
	if err != nil {
		return nil, guard.NewHTTPError(http.StatusBadGateway, "upstream response unreadable", err)
	}

	header := make(http.Header, len(resp.Header))
	copyHeaders(header, resp.Header)
	removeHopByHopHeaders(header)
	header.Del("Content-Length")

	return &guard.Response{Status: resp.StatusCode, Header: header, Body: body}, nil
}

// Checker returns a health check that issues GET path against the
// upstream. Transport errors and 5xx responses are unhealthy.
func (p *Proxy) Checker(path string) health.Checker {
	return health.NewCheckerFunc("upstream", func(ctx context.Context) health.Result {
		start := time.Now()
		resp, err := p.Handle(ctx, &guard.Request{Method: http.MethodGet, Path: path})
		details := map[string]any{"target": p.target.String(), "latency_ms": time.Since(start).Milliseconds()}
		if err != nil {
			return health.Unhealthy("upstream check failed", err).WithDetails(details)
		}
		details["status"] = resp.Status
		return health.Healthy("upstream reachable").WithDetails(details)
	})
}

func (p *Proxy) url(req *guard.Request) string {
	u := *p.target
	u.Path = strings.TrimSuffix(p.target.Path, "/") + req.Path
	u.RawPath = ""
	u.RawQuery = req.Query.Encode()
	return u.String()
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// retryable reports transport failures other than timeouts and
// cancellation.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	return !errors.As(err, &ne) || !ne.Timeout()
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func removeHopByHopHeaders(h http.Header) {
	for _, header := range hopByHopHeaders {
		h.Del(header)
	}
}
