package services

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the HTTP layer maps each kind to a status.
var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrUpload             = errors.New("upload failed")
)

// Error carries a client-facing message and the kind it belongs to.
type Error struct {
	kind    error
	message string
	cause   error
}

func (e *Error) Error() string {
	return e.message
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.kind == target
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}
