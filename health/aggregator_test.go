package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func staticChecker(name string, status Status) Checker {
	return NewCheckerFunc(name, func(context.Context) Result {
		return Result{Status: status, Message: name}
	})
}

func TestNewAggregator_Defaults(t *testing.T) {
	agg := NewAggregator()
	if agg.config.Timeout != DefaultCheckTimeout {
		t.Errorf("Timeout = %v, want %v", agg.config.Timeout, DefaultCheckTimeout)
	}

	agg = NewAggregator(AggregatorConfig{Timeout: 5 * time.Second, MaxConcurrency: 2})
	if agg.config.Timeout != 5*time.Second || agg.config.MaxConcurrency != 2 {
		t.Errorf("config = %+v", agg.config)
	}
}

func TestAggregator_RegisterAndUnregister(t *testing.T) {
	agg := NewAggregator()
	agg.Register(staticChecker("cache", StatusHealthy), staticChecker("circuits", StatusHealthy))
	agg.Register(staticChecker("cache", StatusDegraded))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "cache" || names[1] != "circuits" {
		t.Fatalf("CheckerNames() = %v, want [cache circuits]", names)
	}

	r, err := agg.Check(context.Background(), "cache")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if r.Status != StatusDegraded {
		t.Errorf("re-registered checker should replace the old one, got %v", r.Status)
	}

	agg.Unregister("cache")
	if names := agg.CheckerNames(); len(names) != 1 || names[0] != "circuits" {
		t.Errorf("CheckerNames() after Unregister = %v", names)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	_, err := NewAggregator().Check(context.Background(), "missing")
	if !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("err = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register(
		staticChecker("a", StatusHealthy),
		staticChecker("b", StatusDegraded),
		staticChecker("c", StatusHealthy),
	)

	results := agg.CheckAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("b = %v, want degraded", results["b"].Status)
	}
	for name, r := range results {
		if r.Timestamp.IsZero() {
			t.Errorf("%s: timestamp should be filled in", name)
		}
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	results := NewAggregator().CheckAll(context.Background())
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestAggregator_CheckAllRunsInParallel(t *testing.T) {
	agg := NewAggregator()
	var running, peak atomic.Int32
	release := make(chan struct{})

	for _, name := range []string{"a", "b", "c"} {
		agg.Register(NewCheckerFunc(name, func(ctx context.Context) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return Healthy("ok")
		}))
	}

	go func() {
		deadline := time.Now().Add(time.Second)
		for peak.Load() < 3 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()

	agg.CheckAll(context.Background())

	if peak.Load() != 3 {
		t.Errorf("peak concurrency = %d, want 3", peak.Load())
	}
}

func TestAggregator_MaxConcurrency(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{MaxConcurrency: 1})
	var running, peak atomic.Int32

	for _, name := range []string{"a", "b", "c"} {
		agg.Register(NewCheckerFunc(name, func(ctx context.Context) Result {
			n := running.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return Healthy("ok")
		}))
	}

	if results := agg.CheckAll(context.Background()); len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestAggregator_CheckAllTimeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		time.Sleep(time.Second)
		return Healthy("too late")
	}))
	agg.Register(staticChecker("fast", StatusHealthy))

	start := time.Now()
	results := agg.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("CheckAll took %v, should respect timeout", elapsed)
	}

	slow := results["slow"]
	if slow.Status != StatusUnhealthy || !errors.Is(slow.Error, ErrCheckTimeout) {
		t.Errorf("slow = %+v, want unhealthy timeout", slow)
	}
	if results["fast"].Status != StatusHealthy {
		t.Errorf("fast = %v, want healthy", results["fast"].Status)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]Result{"a": {Status: StatusHealthy}, "b": {Status: StatusHealthy}}, StatusHealthy},
		{"one degraded", map[string]Result{"a": {Status: StatusHealthy}, "b": {Status: StatusDegraded}}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": {Status: StatusDegraded}, "b": {Status: StatusUnhealthy}}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_Report(t *testing.T) {
	agg := NewAggregator()
	agg.Register(staticChecker("a", StatusHealthy), staticChecker("b", StatusDegraded))

	report := agg.Report(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", report.Status)
	}
	if len(report.Results) != 2 {
		t.Errorf("Results = %d, want 2", len(report.Results))
	}
	if report.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}
