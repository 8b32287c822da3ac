package guard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jonwraymond/apiguard/cache"
	"github.com/jonwraymond/apiguard/observe"
	"github.com/jonwraymond/apiguard/resilience"
)

// AnonymousClient is the rate limiting identifier for requests without a
// ClientID.
const AnonymousClient = "anonymous"

// CacheConfig configures the response cache.
type CacheConfig struct {
	Disabled bool

	// DefaultTTL applies to endpoints without a TTL override.
	// Default: 300s
	DefaultTTL time.Duration

	// MaxTTL clamps endpoint TTL overrides. Zero means no maximum.
	MaxTTL time.Duration

	// MaxSize is the number of cached responses.
	// Default: 1000
	MaxSize int

	// Methods lists cacheable methods. Default: GET and HEAD
	Methods []string

	// CleanupInterval is the expiry sweep period. Negative disables the
	// background sweep. Default: 60s
	CleanupInterval time.Duration
}

// RateLimitConfig configures the default quota.
type RateLimitConfig struct {
	Disabled bool

	// Max is the number of requests per window. Default: 100
	Max int

	// Window is the window length. Default: 15 minutes
	Window time.Duration

	// CleanupInterval is the window sweep period. Negative disables the
	// background sweep. Default: 60s
	CleanupInterval time.Duration
}

// CircuitConfig configures the circuit breaker.
type CircuitConfig struct {
	Disabled bool

	// FailureThreshold opens a circuit. Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects calls. Default: 60s
	RecoveryTimeout time.Duration

	// MonitoringPeriod bounds how long failures are remembered by
	// maintenance. Default: 10 minutes
	MonitoringPeriod time.Duration
}

// Config configures a Guard. The zero value enables every stage with
// default settings.
type Config struct {
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Circuit   CircuitConfig
}

// Stats is a snapshot of every component.
type Stats struct {
	Cache     cache.Stats                 `json:"cache"`
	RateLimit resilience.RateLimiterStats `json:"rateLimit"`
	Circuits  []resilience.CircuitStats   `json:"circuits"`
}

// MaintenanceReport counts what one maintenance pass removed or adjusted.
type MaintenanceReport struct {
	CacheExpired     int `json:"cacheExpired"`
	RateLimitWindows int `json:"rateLimitWindows"`
	CircuitsAdjusted int `json:"circuitsAdjusted"`
}

// Guard runs endpoint handlers through rate limiting, caching and circuit
// breaking, in that order.
//
// Contract:
//   - Concurrency: safe for concurrent use. Each stage is atomic on its own,
//     the pipeline as a whole is not: concurrent misses on one key may all
//     run the handler.
//   - Errors: handler errors are returned unchanged. Rejections are
//     reported through Result, not as errors.
type Guard struct {
	config Config

	cache   *cache.Store[*Response]
	policy  cache.Policy
	keyer   cache.Keyer
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker

	tracer        observe.Tracer
	metrics       observe.Metrics
	logger        observe.Logger
	cacheObserver cache.Observer
	now           func() time.Time

	closeOnce sync.Once
	closed    atomic.Bool
}

// Option configures a Guard.
type Option func(*Guard)

// WithMetrics sets the metrics collaborator.
func WithMetrics(m observe.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithTracer sets the tracer.
func WithTracer(t observe.Tracer) Option {
	return func(g *Guard) { g.tracer = t }
}

// WithInstrumentation sets tracer, metrics and logger together.
func WithInstrumentation(inst *observe.Instrumentation) Option {
	return func(g *Guard) {
		inst = inst.Normalize()
		g.tracer, g.metrics, g.logger = inst.Tracer, inst.Metrics, inst.Logger
	}
}

// WithKeyer replaces the default cache keyer.
func WithKeyer(k cache.Keyer) Option {
	return func(g *Guard) { g.keyer = k }
}

// WithCacheObserver receives cache events.
func WithCacheObserver(o cache.Observer) Option {
	return func(g *Guard) { g.cacheObserver = o }
}

// WithClock sets the time source shared by every component.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a Guard and starts the cache and rate limiter sweeps.
// Call Close to stop them.
func New(config Config, opts ...Option) *Guard {
	g := &Guard{config: config}
	for _, opt := range opts {
		opt(g)
	}

	inst := (&observe.Instrumentation{Tracer: g.tracer, Metrics: g.metrics, Logger: g.logger}).Normalize()
	g.tracer, g.metrics, g.logger = inst.Tracer, inst.Metrics, inst.Logger
	if g.keyer == nil {
		g.keyer = cache.NewRequestKeyer()
	}
	if g.now == nil {
		g.now = time.Now
	}

	g.policy = cache.Policy{
		DefaultTTL: config.Cache.DefaultTTL,
		MaxTTL:     config.Cache.MaxTTL,
		Methods:    config.Cache.Methods,
	}
	if g.policy.DefaultTTL <= 0 {
		g.policy.DefaultTTL = cache.DefaultTTL
	}

	g.cache = cache.NewStore[*Response](cache.Config{
		DefaultTTL: g.policy.DefaultTTL,
		MaxSize:    config.Cache.MaxSize,
		Observer:   g.cacheObserver,
		Now:        g.now,
	})
	g.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		MaxRequests: config.RateLimit.Max,
		Window:      config.RateLimit.Window,
		Now:         g.now,
	})
	g.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: config.Circuit.FailureThreshold,
		RecoveryTimeout:  config.Circuit.RecoveryTimeout,
		MonitoringPeriod: config.Circuit.MonitoringPeriod,
		OnStateChange:    g.onStateChange,
		Now:              g.now,
	})

	if !config.Cache.Disabled && config.Cache.CleanupInterval >= 0 {
		g.cache.StartJanitor(config.Cache.CleanupInterval)
	}
	if !config.RateLimit.Disabled && config.RateLimit.CleanupInterval >= 0 {
		g.limiter.StartJanitor(config.RateLimit.CleanupInterval)
	}

	return g
}

// Invoke runs req through the pipeline for ep.
//
// The returned error is non-nil only when the handler failed; it is the
// handler's error, unwrapped. An invalid ep or a closed guard yields a nil
// Result.
func (g *Guard) Invoke(ctx context.Context, ep *Endpoint, req *Request) (*Result, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if g.closed.Load() {
		return nil, ErrClosed
	}

	r := Request{}
	if req != nil {
		r = *req
	}
	if r.Method == "" {
		r.Method = ep.Method
	}
	if r.Path == "" {
		r.Path = ep.Path
	}

	meta := ep.meta()
	ctx, span := g.tracer.StartSpan(ctx, meta)
	start := g.now()

	res, err := g.run(ctx, ep, &r)

	g.metrics.RecordHTTPRequest(ctx, meta.Method, meta.Route, res.Status, g.now().Sub(start))
	span.SetAttributes(
		semconv.HTTPResponseStatusCode(res.Status),
		observe.AttrOutcome.String(res.Outcome.String()),
	)
	if res.CacheStatus != "" {
		span.SetAttributes(observe.AttrCacheStatus.String(res.CacheStatus))
	}
	g.tracer.EndSpan(span, err)

	return res, err
}

func (g *Guard) run(ctx context.Context, ep *Endpoint, req *Request) (*Result, error) {
	opts := ep.Options

	// 1. Rate limit
	var quota *Quota
	if !g.config.RateLimit.Disabled && !opts.RateLimit.Disabled {
		limit := g.limiter.Effective(resilience.Limit{Max: opts.RateLimit.Max, Window: opts.RateLimit.Window})
		client := clientKey(req)

		allowed := g.limiter.Allow(client, limit)
		quota = &Quota{
			Limit:     limit.Max,
			Remaining: g.limiter.Remaining(client, limit),
			ResetAt:   g.limiter.ResetTime(client, limit),
		}
		if !allowed {
			return &Result{
				Outcome:    OutcomeRateLimited,
				Status:     http.StatusTooManyRequests,
				RetryAfter: limit.Window,
				Quota:      quota,
				Rejection:  &resilience.RateLimitError{Identifier: client, Limit: limit, RetryAfter: limit.Window},
			}, nil
		}
	}

	// 2. Cache
	key, ttl, cacheable := g.cacheKey(ctx, ep, req)
	var cacheStatus string
	if cacheable {
		if cached, ok := g.cache.Get(key); ok {
			resp := cached.Clone()
			return &Result{
				Outcome:     OutcomeCacheHit,
				Status:      resp.Status,
				Response:    resp,
				CacheStatus: CacheHit,
				Quota:       quota,
			}, nil
		}
		cacheStatus = CacheMiss
	}

	// 3. Circuit gate
	service := ep.Service()
	useBreaker := !g.config.Circuit.Disabled && !opts.CircuitBreaker.Disabled
	if cb := opts.CircuitBreaker; useBreaker && (cb.FailureThreshold > 0 || cb.RecoveryTimeout > 0) {
		g.breaker.Configure(service, resilience.CircuitSettings{
			FailureThreshold: cb.FailureThreshold,
			RecoveryTimeout:  cb.RecoveryTimeout,
		})
	}
	if useBreaker && g.breaker.IsOpen(service) {
		return g.circuitOpen(service, cacheStatus, quota), nil
	}

	// 4. Handler
	var resp *Response
	op := func(ctx context.Context) error {
		r, err := ep.Handler(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}
	if opts.Timeout > 0 {
		op = resilience.NewTimeout(opts.Timeout).Wrap(op)
	}

	var err error
	if useBreaker {
		invoked := false
		err = g.breaker.Execute(ctx, service, func(ctx context.Context) error {
			invoked = true
			return op(ctx)
		})
		// The circuit opened between the gate and Execute.
		if !invoked && errors.Is(err, resilience.ErrCircuitOpen) {
			return g.circuitOpen(service, cacheStatus, quota), nil
		}
	} else {
		err = op(ctx)
	}

	// 6. Failure
	if err != nil {
		return g.fail(ctx, ep, req, err, cacheStatus, quota)
	}

	// 5. Success
	if resp == nil {
		resp = &Response{}
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if cacheable && resp.Status >= 200 && resp.Status < 300 {
		g.cache.Set(key, resp.Clone(), ttl)
	}

	return &Result{
		Outcome:     OutcomeAllowed,
		Status:      resp.Status,
		Response:    resp,
		CacheStatus: cacheStatus,
		Quota:       quota,
	}, nil
}

// cacheKey reports whether req is cacheable and under which key and TTL.
func (g *Guard) cacheKey(ctx context.Context, ep *Endpoint, req *Request) (string, time.Duration, bool) {
	if g.config.Cache.Disabled || ep.Options.Cache.Disabled || !g.policy.Cacheable(req.Method) {
		return "", 0, false
	}
	ttl := g.policy.EffectiveTTL(ep.Options.Cache.TTL)
	if ttl <= 0 {
		return "", 0, false
	}

	var (
		key string
		err error
	)
	if ep.Options.Cache.KeyFunc != nil {
		key, err = ep.Options.Cache.KeyFunc(req)
	} else {
		key, err = g.keyer.Key(req.Method, req.Path, req.Query)
	}
	if err == nil {
		err = cache.ValidateKey(key)
	}
	if err != nil {
		g.logger.Debug(ctx, "response not cached",
			observe.Field{Key: "endpoint", Value: ep.ID()},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return "", 0, false
	}
	return key, ttl, true
}

func (g *Guard) circuitOpen(service, cacheStatus string, quota *Quota) *Result {
	retry := g.breaker.RetryAfter(service)
	return &Result{
		Outcome:     OutcomeCircuitOpen,
		Status:      http.StatusServiceUnavailable,
		CacheStatus: cacheStatus,
		RetryAfter:  retry,
		Quota:       quota,
		Rejection:   &resilience.CircuitOpenError{Service: service, RetryAfter: retry},
	}
}

func (g *Guard) fail(ctx context.Context, ep *Endpoint, req *Request, err error, cacheStatus string, quota *Quota) (*Result, error) {
	status := StatusOf(err)

	g.metrics.RecordError(ctx, "handler", ep.Service(), err.Error())
	g.logger.WithEndpoint(ep.meta()).Error(ctx, "handler failed",
		observe.Field{Key: "userId", Value: req.UserID},
		observe.Field{Key: "correlationId", Value: req.CorrelationID},
		observe.Field{Key: "status", Value: status},
		observe.Field{Key: "error", Value: err.Error()},
	)

	return &Result{
		Outcome:     OutcomeFailed,
		Status:      status,
		CacheStatus: cacheStatus,
		Quota:       quota,
	}, err
}

func (g *Guard) onStateChange(service string, from, to resilience.State) {
	level := g.logger.Info
	if to == resilience.StateOpen {
		level = g.logger.Warn
	}
	level(context.Background(), "circuit state changed",
		observe.Field{Key: "service", Value: service},
		observe.Field{Key: "from", Value: from.String()},
		observe.Field{Key: "to", Value: to.String()},
	)
}

// Wrap returns ep as a guarded HandlerFunc. Rejections are returned as
// *resilience.RateLimitError or *resilience.CircuitOpenError.
func (g *Guard) Wrap(ep Endpoint) HandlerFunc {
	e := ep.clone()
	return func(ctx context.Context, req *Request) (*Response, error) {
		res, err := g.Invoke(ctx, e, req)
		if err != nil {
			return nil, err
		}
		if res.Rejection != nil {
			return nil, res.Rejection
		}
		return res.Response, nil
	}
}

// Stats returns a snapshot of every component.
func (g *Guard) Stats() Stats {
	return Stats{
		Cache:     g.cache.Stats(),
		RateLimit: g.limiter.Stats(),
		Circuits:  g.breaker.AllStats(),
	}
}

// RunMaintenance performs one explicit sweep of every component.
func (g *Guard) RunMaintenance() MaintenanceReport {
	return MaintenanceReport{
		CacheExpired:     g.cache.Cleanup(),
		RateLimitWindows: g.limiter.Cleanup(),
		CircuitsAdjusted: g.breaker.Cleanup(),
	}
}

// Circuit returns the circuit snapshot for service.
func (g *Guard) Circuit(service string) resilience.CircuitStats {
	return g.breaker.Stats(service)
}

// ResetCircuit closes the circuit for service and forgets its history.
func (g *Guard) ResetCircuit(service string) {
	g.breaker.ResetService(service)
}

// ResetRateLimits clears every rate limit window.
func (g *Guard) ResetRateLimits() {
	g.limiter.ResetAll()
}

// ClearCache drops every cached response.
func (g *Guard) ClearCache() {
	g.cache.Clear()
}

// Close stops background sweeps and clears all state. It is safe to call
// more than once.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		g.cache.Close()
		g.limiter.Close()
		g.breaker.Close()
	})
}

func clientKey(req *Request) string {
	if req.ClientID != "" {
		return req.ClientID
	}
	return AnonymousClient
}
