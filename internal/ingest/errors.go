package ingest

import (
	"errors"
	"fmt"
)

// ErrMalformedPayload marks a trigger payload missing required fields.
// No retry will help; the handler rejects it before any side effect.
var ErrMalformedPayload = errors.New("malformed trigger payload")

// ErrNotFound marks a conditional store operation whose target record no
// longer exists.
var ErrNotFound = errors.New("record not found")

// RetryableError wraps a transient failure. The core raises it once and
// leaves re-triggering entirely to the external scheduler.
type RetryableError struct {
	Reason string
	Err    error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retryable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("retryable: %s", e.Reason)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as a RetryableError with the given reason.
func Retryable(reason string, err error) error {
	return &RetryableError{Reason: reason, Err: err}
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
