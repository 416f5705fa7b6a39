package common

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy describes a bounded retry with a caller supplied wait schedule.
// MaxAttempts counts every call to the operation, including the first.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based).
	Backoff func(attempt int, err error) time.Duration
	// IsRetryable reports whether err may be retried. Nil treats every error as retryable.
	IsRetryable func(err error) bool
	// Notify is called before each wait.
	Notify func(attempt int, err error, wait time.Duration)
	// Timer overrides the wall-clock timer; tests use it to observe waits.
	Timer backoff.Timer
}

// LinearBackoff waits attempt × base(err).
func LinearBackoff(base func(err error) time.Duration) func(int, error) time.Duration {
	return func(attempt int, err error) time.Duration {
		return time.Duration(attempt) * base(err)
	}
}

// policyBackOff adapts RetryPolicy.Backoff to backoff.BackOff.
type policyBackOff struct {
	fn      func(int, error) time.Duration
	attempt int
	lastErr error
}

func (b *policyBackOff) NextBackOff() time.Duration {
	if b.fn == nil {
		return 0
	}
	return b.fn(b.attempt, b.lastErr)
}

func (b *policyBackOff) Reset() {
	b.attempt = 0
	b.lastErr = nil
}

// Retry runs op until it succeeds, returns a non-retryable error, the attempt
// budget is spent or ctx is cancelled. The last error is returned unchanged.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	pb := &policyBackOff{fn: policy.Backoff}
	b := backoff.WithContext(backoff.WithMaxRetries(pb, uint64(maxAttempts-1)), ctx)

	operation := func() (T, error) {
		pb.attempt++
		res, err := op(ctx, pb.attempt)
		if err == nil {
			return res, nil
		}
		pb.lastErr = err
		if policy.IsRetryable != nil && !policy.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	var notify backoff.Notify
	if policy.Notify != nil {
		notify = func(err error, wait time.Duration) {
			policy.Notify(pb.attempt, err, wait)
		}
	}

	return backoff.RetryNotifyWithTimerAndData(operation, b, notify, policy.Timer)
}
