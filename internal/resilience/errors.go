// Package resilience provides bounded retry and circuit breaking for file
// and database access.
package resilience

import (
	"errors"
	"io/fs"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// IsTransient returns true if the error chain holds a TransientError or a
// lock-contention error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return IsLockContention(err)
}

// lockPatterns are messages file systems report when another process holds
// the destination open (Windows sharing violations surface this way).
var lockPatterns = []string{
	"being used by another process",
	"sharing violation",
	"access is denied",
	"resource busy",
	"text file busy",
}

// IsLockContention reports whether err means the destination file is held
// by a concurrent reader.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, fs.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range lockPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
