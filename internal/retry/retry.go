// Package retry provides a small, reusable retry combinator for calls to
// external collaborators (the identity provider, the profile store, the
// Spotify token endpoint).
//
// The policies in this app are deliberately bounded: profile reads and writes
// retry 3 times, redirect handling and token refresh retry 5 times. There are
// no unbounded retry loops anywhere.
package retry

import (
	"context"
	"time"
)

// Backoff computes the delay before the given retry attempt. attempt starts
// at 1 for the delay after the first failure.
type Backoff func(attempt int, base time.Duration) time.Duration

// Linear waits base, 2*base, 3*base, ...
func Linear(attempt int, base time.Duration) time.Duration {
	return time.Duration(attempt) * base
}

// Exponential waits base, 2*base, 4*base, ...
func Exponential(attempt int, base time.Duration) time.Duration {
	return base << (attempt - 1)
}

// Policy describes how an operation is retried.
//
// Retryable decides whether a given failure is worth another attempt. A nil
// Retryable retries everything. Permission errors from the store, for
// example, never resolve on retry and should short-circuit to the caller's
// fallback path instead of burning attempts.
//
// Sleep exists so tests can observe delays without actually waiting. A nil
// Sleep uses a context-aware time.Sleep.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Backoff   Backoff
	Retryable func(error) bool
	Sleep     func(context.Context, time.Duration)
}

// Do runs fn up to p.Attempts times, sleeping between failures according to
// the backoff schedule. It returns nil on the first success, the last error
// once attempts are exhausted, a non-retryable error immediately, or the
// context error if ctx is cancelled between attempts.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = Linear
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}
		sleep(ctx, p.Backoff(attempt, p.BaseDelay))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
