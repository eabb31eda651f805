// Package retry runs operations under a capped exponential backoff policy.
//
// A [Policy] is a plain value: callers configure the base delay, the cap, an
// optional attempt bound and the predicate that decides which errors are worth
// another attempt. The sleep function is injectable so tests can observe the
// schedule without waiting for it.
//
//	p := retry.Default()
//	p.Retryable = stachttp.IsRetryable
//	err := p.Do(ctx, func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
//
// With the defaults the delays between attempts are 2s, 4s, 8s, 16s, 16s, ...
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Default backoff parameters.
const (
	DefaultBase = 2 * time.Second
	DefaultMax  = 16 * time.Second
)

// Policy configures retries.
type Policy struct {
	// Base is the delay before the second attempt.
	Base time.Duration

	// Max caps the delay between attempts.
	Max time.Duration

	// MaxAttempts bounds the total number of attempts. Zero means unbounded.
	MaxAttempts int

	// Jitter spreads each delay by up to ±Jitter of its value (0 to 1).
	Jitter float64

	// Retryable reports whether err should be retried. Nil retries every error.
	Retryable func(err error) bool

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns a policy with the standard 2s..16s schedule and no bound.
func Default() Policy {
	return Policy{
		Base: DefaultBase,
		Max:  DefaultMax,
	}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt && (p.Max <= 0 || d < p.Max); i++ {
		d *= 2
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if p.Jitter > 0 {
		d = time.Duration(float64(d) * (1 - p.Jitter + 2*p.Jitter*rand.Float64()))
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempt
// bound is reached, or ctx is done.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
}

// ExhaustedError is returned when the attempt bound is reached.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
