package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned for queries that are empty, blank, or not valid UTF-8.
	ErrMalformedInput = errors.New("malformed input")

	// ErrStorageUnavailable is returned when the persistent store cannot be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrProducerFailure is matched by every error originating from the answer producer.
	ErrProducerFailure = errors.New("producer failure")
)

// ProducerError describes a failed producer invocation.
// It unwraps to both ErrProducerFailure and the underlying cause.
type ProducerError struct {
	Timeout bool
	Err     error
}

func (e *ProducerError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("producer failure: timeout: %v", e.Err)
	}
	return fmt.Sprintf("producer failure: upstream: %v", e.Err)
}

func (e *ProducerError) Unwrap() []error {
	return []error{ErrProducerFailure, e.Err}
}

// IsTimeout reports whether err is a producer timeout.
func IsTimeout(err error) bool {
	var pe *ProducerError
	return errors.As(err, &pe) && pe.Timeout
}
