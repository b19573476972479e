package search

import (
	"context"
	"time"
)

// withRetry runs op up to attempts+1 times, doubling the backoff between
// tries. Only errors the retryable predicate accepts are retried; any
// other error aborts immediately. Context cancellation wins over backoff.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, retryable func(error) bool, op func() error) error {
	var err error
	for attempt := 0; attempt <= attempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return err
}
