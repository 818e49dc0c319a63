package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"retailpos/backend/internal/domain"
)

var fastPolicy = Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}

func TestDoSucceedsAfterTransientConflicts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		calls++
		return domain.ErrInsufficientStock
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected permanent error to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestDoExhaustionWrapsLastConflict(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy, func(ctx context.Context) error {
		calls++
		return domain.ErrConcurrentUpdate
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, domain.ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	var exhausted *domain.RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %T", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", exhausted.Attempts)
	}
	if !errors.Is(exhausted.Last, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected last conflict preserved, got %v", exhausted.Last)
	}
}

func TestDoRespectsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, policy, func(ctx context.Context) error {
			return domain.ErrConcurrentUpdate
		})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestDoValueReturnsResult(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, domain.ErrConcurrentUpdate
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}
