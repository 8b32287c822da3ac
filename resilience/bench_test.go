package resilience

import (
	"context"
	"strconv"
	"testing"
	"time"
)

// BenchmarkCircuitBreaker_Execute_Closed measures happy path execution.
func BenchmarkCircuitBreaker_Execute_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 100})
	ctx := context.Background()
	op := func(ctx context.Context) error { return nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, "svc", op)
	}
}

// BenchmarkCircuitBreaker_IsOpen measures the gate check on an open circuit.
func BenchmarkCircuitBreaker_IsOpen(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	})
	cb.RecordFailure("svc")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.IsOpen("svc")
	}
}

// BenchmarkRateLimiter_Allow measures a single hot identifier.
func BenchmarkRateLimiter_Allow(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1 << 30, Window: time.Hour})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Allow("ip1", Limit{})
	}
}

// BenchmarkRateLimiter_Allow_ManyIdentifiers measures window creation.
func BenchmarkRateLimiter_Allow_ManyIdentifiers(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{})
	ids := make([]string, 1024)
	for i := range ids {
		ids[i] = "ip" + strconv.Itoa(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rl.Allow(ids[i%len(ids)], Limit{})
	}
}

// BenchmarkRateLimiter_AllowParallel measures contention.
func BenchmarkRateLimiter_AllowParallel(b *testing.B) {
	rl := NewRateLimiter(RateLimiterConfig{MaxRequests: 1 << 30, Window: time.Hour})

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = rl.Allow("ip1", Limit{})
		}
	})
}
