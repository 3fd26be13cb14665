// Package apperr holds the error taxonomy shared by every core operation.
// Domain packages wrap these sentinels so callers can branch with errors.Is
// without knowing which package produced the failure.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
	ErrTransport  = errors.New("transport failure")
)

// Validation returns an error wrapping ErrValidation with a human-readable message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Message strips the taxonomy prefix so the text can be shown to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrTransport} {
		prefix := kind.Error() + ": "
		msg := err.Error()
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return err.Error()
}
