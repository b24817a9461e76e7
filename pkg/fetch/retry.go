package fetch

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// The fetcher wraps transient transport failures (connection errors, HTTP
// 5xx responses) so that [Retry] re-attempts them; all other errors are
// permanent and returned immediately.
//
// RetryableError implements error unwrapping, so errors.Is and errors.As
// work correctly with the wrapped error.
type RetryableError struct{ Err error }

// Retryable wraps an error as a [RetryableError]. Returns nil if err is nil,
// allowing safe use in error returns.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error, enabling errors.Is and errors.As
// to inspect the underlying cause.
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is wrapped with RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Retry executes fn up to attempts times with exponential backoff.
//
// Only errors wrapped with [RetryableError] trigger a retry; all other
// errors are returned immediately. Between retries, Retry waits for delay,
// then doubles the delay for the next attempt. If ctx is cancelled during a
// retry delay, Retry returns ctx.Err() immediately.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
