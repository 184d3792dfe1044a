package backoff

import (
	"context"
	"time"
)

// Retry executes f up to attempts times with exponential backoff starting at sleep.
// It returns nil on the first successful attempt, or the last error if all attempts fail.
// shouldRetry decides whether an error is retryable; a false answer stops immediately.
// Waiting between attempts is abandoned when ctx is done.
func Retry(ctx context.Context, attempts int, sleep time.Duration, f func() error, shouldRetry func(error) bool) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = time.Second
	}
	var lastErr error
	for cur := 0; cur < attempts; cur++ {
		err := f()
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) {
			return err
		}
		if cur == attempts-1 {
			break
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		sleep *= 2
	}
	return lastErr
}
