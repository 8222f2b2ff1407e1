package resilience

import (
	"errors"
	"testing"
	"time"
)

var errStore = errors.New("store unreachable")

func failing() error { return errStore }
func healthy() error { return nil }

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Execute(failing); !errors.Is(err, errStore) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	if !b.Degraded() {
		t.Fatal("breaker should be open after max failures")
	}
	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrStoreCircuitOpen) {
		t.Fatalf("err = %v, want ErrStoreCircuitOpen", err)
	}
	if called {
		t.Fatal("open breaker must not call the operation")
	}
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	_ = b.Execute(failing)
	_ = b.Execute(failing)
	if b.Degraded() {
		t.Fatal("breaker opened below threshold")
	}
	if err := b.Execute(healthy); err != nil {
		t.Fatalf("healthy call through closed breaker: %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	_ = b.Execute(failing)
	_ = b.Execute(failing)
	_ = b.Execute(healthy)
	_ = b.Execute(failing)
	_ = b.Execute(failing)
	if b.Degraded() {
		t.Fatal("success should have reset the consecutive failure count")
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBreaker(1, 30*time.Second)
	b.now = func() time.Time { return clock }

	_ = b.Execute(failing)
	if !b.Degraded() {
		t.Fatal("breaker should be open")
	}

	// Still within the hold-off window.
	clock = clock.Add(10 * time.Second)
	if err := b.Execute(healthy); !errors.Is(err, ErrStoreCircuitOpen) {
		t.Fatalf("err = %v, want ErrStoreCircuitOpen", err)
	}

	// After the timeout the breaker half-opens and probes.
	clock = clock.Add(30 * time.Second)
	if err := b.Execute(healthy); err != nil {
		t.Fatalf("probe through half-open breaker: %v", err)
	}
	if b.Degraded() {
		t.Fatal("successful probe should close the breaker")
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBreaker(1, 30*time.Second)
	b.now = func() time.Time { return clock }

	_ = b.Execute(failing)
	clock = clock.Add(time.Minute)
	if err := b.Execute(failing); !errors.Is(err, errStore) {
		t.Fatalf("half-open probe err = %v", err)
	}
	if !b.Degraded() {
		t.Fatal("failed probe should reopen the breaker")
	}
}
