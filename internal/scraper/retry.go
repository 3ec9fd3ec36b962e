// internal/scraper/retry.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy wraps fallible navigation and extraction steps with bounded
// retries and capped-exponential backoff.
type RetryPolicy struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	BaseDelay         time.Duration
	MaxDelay          time.Duration

	// OnRetry, when set, observes each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy matches the etiquette the marketplaces tolerate.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		PerAttemptTimeout: 30 * time.Second,
		BaseDelay:         2 * time.Second,
		MaxDelay:          15 * time.Second,
	}
}

// Do runs op with up to MaxAttempts attempts, each under its own timeout.
// Permanent failures (classified extraction errors) short-circuit without
// consuming further attempts. Exhaustion yields RetryExhaustedError;
// cancellation of ctx propagates immediately.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttemptTimeout)
		}
		err := op(attemptCtx)
		attemptExpired := attemptCtx.Err() != nil && ctx.Err() == nil
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case attemptExpired && isContextErr(err):
			// The attempt's own budget ran out. Rewrapped so the bare
			// context error is never read as run cancellation upstream.
			lastErr = fmt.Errorf("%w after %v", errAttemptTimeout, p.PerAttemptTimeout)
		case isTransient(err):
			lastErr = err
		default:
			return err
		}

		if attempt < attempts {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.delay(attempt)):
			}
		}
	}

	return &RetryExhaustedError{Attempts: attempts, Last: lastErr}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// delay computes the wait before the next attempt: BaseDelay doubled per
// attempt, capped at MaxDelay.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
