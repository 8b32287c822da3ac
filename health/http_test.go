package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAggregator(statuses map[string]Status) *Aggregator {
	agg := NewAggregator()
	for name, status := range statuses {
		if status == StatusUnhealthy {
			agg.Register(NewCheckerFunc(name, func(context.Context) Result {
				return Unhealthy("down", errors.New("connection refused"))
			}))
			continue
		}
		agg.Register(staticChecker(name, status))
	}
	return agg
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestLivenessHandler(t *testing.T) {
	rec := serve(t, LivenessHandler(), "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]Status
		wantCode int
		wantBody string
	}{
		{"healthy", map[string]Status{"a": StatusHealthy}, http.StatusOK, "OK"},
		{"degraded", map[string]Status{"a": StatusHealthy, "b": StatusDegraded}, http.StatusOK, "DEGRADED"},
		{"unhealthy", map[string]Status{"a": StatusDegraded, "b": StatusUnhealthy}, http.StatusServiceUnavailable, "UNHEALTHY"},
		{"no checkers", nil, http.StatusOK, "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, ReadinessHandler(newTestAggregator(tt.statuses)), "/readyz")

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := newTestAggregator(map[string]Status{"cache": StatusHealthy, "circuits": StatusUnhealthy})
	rec := serve(t, DetailedHandler(agg), "/health")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
	if resp.Checks["cache"].Status != "healthy" {
		t.Errorf("cache = %+v", resp.Checks["cache"])
	}
	circuits := resp.Checks["circuits"]
	if circuits.Status != "unhealthy" || circuits.Error != "connection refused" {
		t.Errorf("circuits = %+v", circuits)
	}
	if resp.Timestamp == "" {
		t.Error("timestamp should be set")
	}
}

func TestSingleCheckHandler(t *testing.T) {
	agg := newTestAggregator(map[string]Status{"cache": StatusDegraded, "db": StatusUnhealthy})
	mux := http.NewServeMux()
	RegisterHandlers(mux, agg)

	rec := serve(t, mux, "/health/cache")
	if rec.Code != http.StatusOK {
		t.Errorf("cache status = %d, want 200", rec.Code)
	}
	var resp CheckResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("cache = %+v", resp)
	}

	if rec := serve(t, mux, "/health/db"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("db status = %d, want 503", rec.Code)
	}
	if rec := serve(t, mux, "/health/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, newTestAggregator(map[string]Status{"a": StatusHealthy}))

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		if rec := serve(t, mux, path); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz = %d, want 405", rec.Code)
	}
}
