package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	if got := NewTimeout(0).Limit(); got != DefaultTimeout {
		t.Errorf("Limit() = %v, want %v", got, DefaultTimeout)
	}
	if got := NewTimeout(5 * time.Second).Limit(); got != 5*time.Second {
		t.Errorf("Limit() = %v, want 5s", got)
	}
}

func TestTimeout_ExecuteSuccess(t *testing.T) {
	executed := false
	err := NewTimeout(time.Second).Execute(context.Background(), func(ctx context.Context) error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
}

func TestTimeout_ExecuteError(t *testing.T) {
	testErr := errors.New("test error")
	err := NewTimeout(time.Second).Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	if err != testErr {
		t.Errorf("Execute() error = %v, want %v", err, testErr)
	}
}

func TestTimeout_ExecuteTimeout(t *testing.T) {
	ctxDone := make(chan struct{})
	err := NewTimeout(10*time.Millisecond).Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		close(ctxDone)
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}

	select {
	case <-ctxDone:
	case <-time.After(time.Second):
		t.Error("operation context was not cancelled")
	}
}

func TestTimeout_ExecuteContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := NewTimeout(time.Second).Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestTimeout_WrapWithBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	slow := NewTimeout(5 * time.Millisecond).Wrap(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := cb.Execute(context.Background(), "slow", slow)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Execute() error = %v, want ErrTimeout", err)
	}
	if !cb.IsOpen("slow") {
		t.Error("timed-out call was not recorded as a failure")
	}
}
