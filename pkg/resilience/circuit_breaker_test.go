package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func failing(context.Context) error { return errors.New("dial refused") }

func succeeding(context.Context) error { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "asset-node",
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after threshold, got %s", cb.State())
	}

	// While open, calls are rejected without running fn.
	ran := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if ran {
		t.Fatal("open breaker must not run the call")
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), succeeding)
	_ = cb.Execute(context.Background(), failing)

	if cb.State() != CircuitClosed {
		t.Fatalf("interleaved success must keep the breaker closed, got %s", cb.State())
	}
}

func TestBreakerCanceledCallIsNeutral(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	_ = cb.Execute(context.Background(), func(context.Context) error {
		return context.Canceled
	})
	if cb.State() != CircuitClosed {
		t.Fatalf("caller cancellation must not trip the breaker, got %s", cb.State())
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      50 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), failing)
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(70 * time.Millisecond)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %s", cb.State())
	}

	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("successful probe must close the breaker, got %s", cb.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      50 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), failing)
	time.Sleep(70 * time.Millisecond)

	_ = cb.Execute(context.Background(), failing)
	if cb.State() != CircuitOpen {
		t.Fatalf("failed probe must reopen the breaker, got %s", cb.State())
	}
}

func TestBreakerRejectionCarriesRetryHint(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "localhost:9040",
		FailureThreshold: 1,
		OpenTimeout:      time.Minute,
	})

	_ = cb.Execute(context.Background(), failing)
	err := cb.Execute(context.Background(), succeeding)

	var rejection *CircuitOpenError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected CircuitOpenError, got %T", err)
	}
	if rejection.Name != "localhost:9040" {
		t.Fatalf("unexpected breaker name %q", rejection.Name)
	}
	if rejection.RetryAfter <= 0 {
		t.Fatalf("expected positive retry hint, got %s", rejection.RetryAfter)
	}
}
