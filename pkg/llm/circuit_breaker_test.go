package llm

import (
	"testing"
	"time"
)

// newTestBreaker returns a breaker whose clock is controlled by the returned pointer.
func newTestBreaker(threshold int, resetAfter time.Duration) (*CircuitBreaker, *time.Time) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: threshold, ResetAfter: resetAfter})
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestCircuitBreaker_InitialState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %v", cb.State())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("expected closed circuit to allow, got %v", err)
	}
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed below threshold, got %v", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open at threshold, got %v", cb.State())
	}

	err := cb.Allow()
	if err == nil {
		t.Fatal("expected open circuit to reject")
	}
	if GetErrorType(err) != ErrorTypeUnavailable {
		t.Errorf("expected unavailable error, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.ConsecutiveFailures() != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", cb.ConsecutiveFailures())
	}
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, 10*time.Second)

	cb.RecordFailure()
	if cb.Allow() == nil {
		t.Fatal("expected rejection while open")
	}

	*clock = clock.Add(10 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected probe to be allowed, got %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.State())
	}
	if cb.Allow() == nil {
		t.Error("expected second call during probe to be rejected")
	}

	// Failed probe reopens.
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after failed probe, got %v", cb.State())
	}

	*clock = clock.Add(10 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("expected second probe, got %v", err)
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_DisabledWithZeroThreshold(t *testing.T) {
	cb, _ := newTestBreaker(0, time.Second)
	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("disabled breaker must always allow, got %v", err)
	}
}

func TestCircuitState_String(t *testing.T) {
	cases := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for state, want := range cases {
		if state.String() != want {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), want)
		}
	}
}
