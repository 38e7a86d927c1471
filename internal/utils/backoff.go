package utils

import (
	"context"
	"math/rand"
	"time"
)

// Backoff retries with exponential delay plus up to base/2 of jitter.
type Backoff struct {
	base       time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	return Backoff{base: base, maxRetries: maxRetries}
}

// Attempts is the total number of calls Do may make.
func (b Backoff) Attempts() int { return b.maxRetries + 1 }

// Do calls fn until it succeeds, retries are exhausted or ctx is done.
func (b Backoff) Do(ctx context.Context, fn func(i int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if i == b.maxRetries {
			break
		}
		t := time.Duration(1<<i) * b.base
		if half := int64(b.base / 2); half > 0 {
			t += time.Duration(rand.Int63n(half))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t):
		}
	}
	return err
}
