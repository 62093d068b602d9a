package util

import (
	"context"
	"fmt"
	"time"
)

// BackoffFunc returns how long to wait after the given failed attempt (0-indexed).
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits step*(attempt+1), never longer than max.
func LinearBackoff(step, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return min(step*time.Duration(attempt+1), max)
	}
}

// RetryWithPolicy calls fn up to maxRetries+1 times, sleeping backoff(attempt)
// between failures. A nil backoff retries immediately. Cancelling ctx stops
// the loop with the context error.
func RetryWithPolicy(ctx context.Context, maxRetries int, backoff BackoffFunc, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var wait time.Duration
		if backoff != nil {
			wait = backoff(attempt)
		}
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastErr)
}
