// Package retry runs operations with bounded exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Options configures Do. Zero values fall back to DefaultOptions.
type Options struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration

	// IsRetryable decides whether err is worth another attempt.
	// Defaults to IsTransient.
	IsRetryable func(err error) bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultOptions returns the settings used for extraction calls.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
		IsRetryable:       IsTransient,
	}
}

// MaxRetriesExceededError is returned once every attempt has failed with a
// retryable error.
type MaxRetriesExceededError struct {
	Attempts int
	LastErr  error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *MaxRetriesExceededError) Unwrap() error { return e.LastErr }

// TimeoutError marks an operation that ran out of time. It is always retryable.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// Do calls op until it succeeds, returns a non-retryable error, or runs out of
// attempts. A non-retryable error is returned as is.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !opts.IsRetryable(err) {
			return zero, err
		}
		if attempt == opts.MaxAttempts {
			break
		}

		delay := opts.Delay(attempt)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &MaxRetriesExceededError{Attempts: attempt, LastErr: lastErr}
		case <-timer.C:
		}
	}

	return zero, &MaxRetriesExceededError{Attempts: opts.MaxAttempts, LastErr: lastErr}
}

// Delay returns the backoff after the given (1-based) failed attempt:
// min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay).
func (o Options) Delay(attempt int) time.Duration {
	d := float64(o.InitialDelay) * math.Pow(o.BackoffMultiplier, float64(attempt-1))
	if d > float64(o.MaxDelay) || math.IsInf(d, 0) {
		return o.MaxDelay
	}
	return time.Duration(d)
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.InitialDelay < 0 {
		o.InitialDelay = 0
	}
	if o.BackoffMultiplier < 1 {
		o.BackoffMultiplier = def.BackoffMultiplier
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.IsRetryable == nil {
		o.IsRetryable = IsTransient
	}
	return o
}
