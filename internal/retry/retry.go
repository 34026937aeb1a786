// Package retry provides a bounded-attempt retry primitive with linear
// backoff over a caller-classified error set.
package retry

import (
	"context"
	"time"
)

const (
	// DefaultAttempts bounds the total number of tries, first included.
	DefaultAttempts = 3
	// DefaultBaseDelay is multiplied by the attempt number between tries.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Do runs op up to attempts times. After a failure that classified reports
// true for, it sleeps attempt*baseDelay and tries again; when attempts are
// exhausted the last classified error is returned. Unclassified errors
// propagate immediately. There is no jitter.
func Do[T any](ctx context.Context, attempts int, baseDelay time.Duration, classified func(error) bool, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !classified(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(attempt) * baseDelay):
		}
	}

	return zero, lastErr
}
