package retry

import (
	"context"
	"errors"
	"time"
)

// Policy retries an operation with exponential backoff. It is passed to
// the components performing external calls instead of living as a
// process-wide singleton, so each dependency can carry its own limits.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// permanentError stops retrying immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying (bad request, auth
// failure, validation problem).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs fn up to MaxAttempts times, sleeping BaseDelay, 2*BaseDelay,
// 4*BaseDelay, ... between attempts. A Permanent error or a canceled
// context stops the loop. The last error is returned unwrapped from any
// Permanent marker.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}
