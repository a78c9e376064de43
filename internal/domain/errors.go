package domain

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can branch
// with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrExternal     = errors.New("external failure")
)

var (
	ErrNoChanges              = Validationf("no changes selected")
	ErrBookingNotFound        = fmt.Errorf("booking %w", ErrNotFound)
	ErrNoteNotFound           = fmt.Errorf("note %w", ErrNotFound)
	ErrAgentNotFound          = fmt.Errorf("agent %w", ErrNotFound)
	ErrUploadNotFound         = fmt.Errorf("upload %w", ErrNotFound)
	ErrOutboxTaskNotFound     = fmt.Errorf("outbox task %w", ErrNotFound)
	ErrConcurrentModification = fmt.Errorf("%w: concurrent modification", ErrConflict)
	ErrBookingCancelled       = fmt.Errorf("%w: booking is cancelled", ErrConflict)
	ErrEmailTaken             = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrInvalidCredentials     = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrTooManyAttempts        = fmt.Errorf("%w: too many login attempts", ErrUnauthorized)
)

// Validationf builds an error of the validation class.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Externalf wraps a collaborator failure.
func Externalf(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternal, op, err)
}
