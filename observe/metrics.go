package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Metric names.
const (
	MetricRequests        = "apiguard.http.requests"
	MetricRequestDuration = "apiguard.http.request.duration_ms"
	MetricErrors          = "apiguard.errors"
)

// Metrics records request outcomes and errors.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordHTTPRequest records one completed request.
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)

	// RecordError records an error of kind raised by source.
	RecordError(ctx context.Context, kind, source, message string)
}

// metricsImpl is the OpenTelemetry implementation of Metrics.
type metricsImpl struct {
	requests     metric.Int64Counter
	errors       metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates Metrics instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requests, err := meter.Int64Counter(
		MetricRequests,
		metric.WithDescription("Total number of guarded requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		MetricErrors,
		metric.WithDescription("Total number of errors raised behind the guard"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricRequestDuration,
		metric.WithDescription("Guarded request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requests:     requests,
		errors:       errs,
		durationHist: durationHist,
	}, nil
}

// RecordHTTPRequest records the request counter and duration histogram.
func (m *metricsImpl) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	opt := metric.WithAttributes(
		semconv.HTTPRequestMethodKey.String(method),
		semconv.HTTPRoute(route),
		semconv.HTTPResponseStatusCode(status),
	)

	m.requests.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// RecordError increments the error counter. The message is not used as an
// attribute; it is unbounded.
func (m *metricsImpl) RecordError(ctx context.Context, kind, source, message string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		semconv.ErrorTypeKey.String(kind),
		attribute.String("error.source", source),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NoopMetrics returns Metrics that discards everything.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
}

func (noopMetrics) RecordError(ctx context.Context, kind, source, message string) {}
