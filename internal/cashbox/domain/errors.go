package cashbox

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("cashbox: validation failed")
	// ErrSessionAlreadyOpen is returned when the operating day already has an open session.
	ErrSessionAlreadyOpen = errors.New("cashbox: session already open for operating day")
	// ErrSessionNotFound is returned when a session id does not exist.
	ErrSessionNotFound = errors.New("cashbox: session not found")
	// ErrNilSession is returned when a nil session is mutated.
	ErrNilSession = errors.New("cashbox: nil session")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cashbox: invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// OpenSessionConflictError names the session that blocks a new open.
// SessionID may be empty when the store rejected the insert without reporting the row.
type OpenSessionConflictError struct {
	SessionID    string
	OperatingDay time.Time
}

func (e *OpenSessionConflictError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("cashbox: session already open for operating day %s", FormatDay(e.OperatingDay))
	}
	return fmt.Sprintf("cashbox: session %s already open for operating day %s", e.SessionID, FormatDay(e.OperatingDay))
}

// Unwrap lets errors.Is match ErrSessionAlreadyOpen.
func (e *OpenSessionConflictError) Unwrap() error { return ErrSessionAlreadyOpen }
