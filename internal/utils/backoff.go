package utils

import (
	"context"
	"time"
)

// Backoff retries a function with exponential delays: base, 2*base, 4*base...
type Backoff struct {
	base       time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	return Backoff{base: base, maxRetries: maxRetries}
}

// Do runs fn until it succeeds or attempts are exhausted. The context
// cancels the wait between attempts, not a running fn.
func (b Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		err = fn(i)
		if err == nil {
			return nil
		}
		if i == b.maxRetries {
			break
		}
		wait := time.Duration(1<<i) * b.base
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
