package backoff

import (
	"context"
	"errors"
	"fmt"
)

// ErrAttemptsExhausted is returned by Retry when every attempt failed with a
// retryable error. The last attempt's error is wrapped and reachable through
// errors.Unwrap.
var ErrAttemptsExhausted = errors.New("backoff: attempts exhausted")

// Retry runs fn up to maxAttempts times, sleeping per the policy between
// attempts. A non-retryable error (per the retryable predicate) is returned
// immediately. A nil retryable predicate treats every error as retryable.
// Context cancellation interrupts both the attempt in flight and the sleep.
func Retry[T any](ctx context.Context, policy Policy, maxAttempts int, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}
		if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, lastErr)
}
