// Package apperr defines the error taxonomy shared by the store, the note
// repository, the identity gate and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both "missing" and "owned by someone else".
	ErrNotFound           = errors.New("not found")
	ErrVersionConflict    = errors.New("version conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation failed")
	ErrStorage            = errors.New("storage fault")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Storage wraps a storage-medium failure so that it matches ErrStorage while
// keeping the cause reachable through errors.Is/As.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Validation wraps field-level validation errors (usually ozzo
// validation.Errors) so that they match ErrValidation.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Invalid builds a validation error from a plain message.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
