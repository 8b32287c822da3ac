package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatus_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"cache": StatusDegraded})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"cache":"degraded"}` {
		t.Errorf("Marshal() = %s", data)
	}
}

func TestResultConstructors(t *testing.T) {
	err := errors.New("down")

	if r := Healthy("ok"); r.Status != StatusHealthy || r.Message != "ok" || r.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", r)
	}
	if r := Degraded("slow"); r.Status != StatusDegraded || r.Message != "slow" {
		t.Errorf("Degraded() = %+v", r)
	}
	if r := Unhealthy("bad", err); r.Status != StatusUnhealthy || r.Error != err {
		t.Errorf("Unhealthy() = %+v", r)
	}

	r := Healthy("ok").WithDetails(map[string]any{"items": 3})
	if r.Details["items"] != 3 {
		t.Errorf("WithDetails() = %+v", r.Details)
	}
}

func TestCheckerFunc(t *testing.T) {
	type ctxKey struct{}
	checker := NewCheckerFunc("cache", func(ctx context.Context) Result {
		if ctx.Value(ctxKey{}) != "v" {
			return Unhealthy("missing context value", nil)
		}
		return Healthy("ok")
	})

	if checker.Name() != "cache" {
		t.Errorf("Name() = %q, want cache", checker.Name())
	}
	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	if r := checker.Check(ctx); r.Status != StatusHealthy {
		t.Errorf("Check() = %+v, want healthy", r)
	}
}
