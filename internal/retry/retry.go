package retry

import (
	"context"
	"time"

	"retailpos/backend/internal/domain"
)

// Policy controls backoff for transient conflicts. Retry decisions live at
// the call site; the operations being retried are safe to re-invoke and
// carry no retry logic of their own.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
}

// Default matches the checkout path: three attempts with a short doubling
// backoff, enough to ride out a burst of counter conflicts without making
// the cashier wait.
var Default = Policy{
	MaxAttempts:  3,
	InitialDelay: 120 * time.Millisecond,
	Multiplier:   2,
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = Default.InitialDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Do invokes fn until it succeeds, fails with a non-transient error, or the
// attempt budget runs out. Only domain.IsTransient errors are retried;
// everything else propagates immediately. Exhaustion wraps the last conflict
// in a RetryExhaustedError so callers can tell "still conflicting" apart
// from the conflict itself.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	policy = policy.normalized()

	delay := policy.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}
	return &domain.RetryExhaustedError{Attempts: policy.MaxAttempts, Last: lastErr}
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
