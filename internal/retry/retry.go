// Package retry implements bounded exponential backoff for transient
// upstream failures.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls how Do spaces its attempts.
type Policy struct {
	MaxAttempts int           // total attempts including the first, default 3
	BaseDelay   time.Duration // delay before the second attempt, default 200ms
	MaxDelay    time.Duration // cap on a single delay, default 5s
}

// DefaultPolicy suits short, interactive API calls.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    5 * time.Second,
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	return p
}

// Do invokes fn until it succeeds, returns a non-retryable error, runs
// out of attempts, or ctx is done. retryable decides whether an error
// is worth another attempt; a nil retryable retries everything.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff(p, attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}

// backoff returns the delay before the given attempt: exponential in
// the attempt number with up to 25% random jitter, capped at MaxDelay.
func backoff(p Policy, attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
