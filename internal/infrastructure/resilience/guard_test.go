package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteCallsOnceWithoutRetry(t *testing.T) {
	guard := NewGuard(Config{Enabled: true})

	calls := 0
	errTemp := errors.New("temporary")
	err := guard.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errTemp
	}, nil)
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	guard := NewGuard(Config{
		Enabled:         true,
		MinRequests:     2,
		FailureRatio:    0.5,
		OpenTimeout:     50 * time.Millisecond,
		HalfOpenMaxCall: 1,
	})

	errTemp := errors.New("temporary")
	for i := 0; i < 2; i++ {
		err := guard.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, nil)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := guard.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}

	// Other operations keep their own breaker.
	if err := guard.Execute(context.Background(), "other", func(context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("expected independent breaker for other op, got %v", err)
	}
}

func TestExecuteIgnoresUnrecordedFailures(t *testing.T) {
	guard := NewGuard(Config{Enabled: true, MinRequests: 1, FailureRatio: 0.1})

	errBadInput := errors.New("bad input")
	skip := func(error) bool { return false }
	for i := 0; i < 5; i++ {
		err := guard.Execute(context.Background(), "op", func(context.Context) error {
			return errBadInput
		}, skip)
		if !errors.Is(err, errBadInput) {
			t.Fatalf("iteration %d: expected bad input error, got %v", i, err)
		}
	}
}

func TestExecuteDisabledRunsDirectly(t *testing.T) {
	var guard *Guard
	called := false
	if err := guard.Execute(context.Background(), "op", func(context.Context) error {
		called = true
		return nil
	}, nil); err != nil || !called {
		t.Fatalf("expected direct call, err=%v called=%v", err, called)
	}
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	guard := NewGuard(Config{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := guard.Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("operation must not run on cancelled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
