package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/bookchunk/internal/toc"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *toc.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// retry calls fn up to MaxRetries times. Only retryable errors are retried;
// onRetry sees each one before the wait.
func retry(ctx context.Context, backoff func(int) time.Duration, onRetry func(attempt int, err error), fn func() error) error {
	var err error
	for attempt := range MaxRetries {
		err = fn()
		if err == nil || !IsRetryable(err) || attempt == MaxRetries-1 {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
