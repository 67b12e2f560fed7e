// Package storage defines the persistence failures shared by every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the backing store could not be reached.
	ErrUnavailable = errors.New("store unavailable")
	// ErrWriteFailed means a write was attempted and rolled back.
	ErrWriteFailed = errors.New("write failed")
	// ErrRejected means the store refused the write because it breaks a
	// schema constraint. Repeating the same write fails the same way.
	ErrRejected = errors.New("write rejected by constraint")
)

// Unavailable wraps err so that errors.Is(err, ErrUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// WriteFailed wraps err so that errors.Is(err, ErrWriteFailed) holds.
func WriteFailed(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrWriteFailed, err)
}

// Rejected wraps err so that errors.Is(err, ErrRejected) holds.
func Rejected(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrRejected, err)
}

// IsTransient reports whether retrying the same write may succeed.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrRejected) {
		return false
	}
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrWriteFailed)
}
