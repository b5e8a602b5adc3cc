package indexer

import (
	"context"
	"time"
)

// Retrier wraps a unit of work with bounded exponential-backoff retry.
// Delays grow as BaseDelay, 2*BaseDelay, 4*BaseDelay, ... The zero value
// never retries.
type Retrier struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
}

// DefaultRetrier matches the scheduled-job policy: three retries starting
// at five seconds.
func DefaultRetrier() Retrier {
	return Retrier{MaxRetries: 3, BaseDelay: 5 * time.Second}
}

// Do runs fn until it succeeds, retries are exhausted, or the context is
// canceled. Returns the last error on exhaustion.
func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.BaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if last = fn(ctx); last == nil {
			return nil
		}
	}
	return last
}
