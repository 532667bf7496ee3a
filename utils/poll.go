package utils

import (
	"context"
	"fmt"
	"time"

	"grocery-helpers/internal/types"
)

// PollFunc inspects the page once. It returns done=true with the value once
// the condition holds; a non-nil error stops polling immediately.
type PollFunc[T any] func(ctx context.Context) (T, bool, error)

// Poll calls fn until it reports done, fails, or timeout elapses, sleeping
// interval between attempts. It returns types.ErrTimeout if the condition
// never held.
func Poll[T any](ctx context.Context, timeout, interval time.Duration, fn PollFunc[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)
	attempts := 0

	for {
		attempts++
		value, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}

		if !time.Now().Before(deadline) {
			return zero, fmt.Errorf("%w after %v (%d attempts)", types.ErrTimeout, timeout, attempts)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
