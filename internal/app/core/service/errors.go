package service

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the application services. Callers wrap them with
// context and the HTTP layer maps them to status codes with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Invalid wraps ErrValidation with a field-level message.
func Invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }
