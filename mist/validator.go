package mist

import (
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

// MessageValidator is a custom check run after the built-in validation.
// Returning a *ValidationError merges its problems into the result; any
// other error is added as a single problem.
type MessageValidator interface {
	Validate(msg *message.Message) error
}

// MessageValidatorFunc adapts a function to MessageValidator
type MessageValidatorFunc func(msg *message.Message) error

// Validate calls f(msg)
func (f MessageValidatorFunc) Validate(msg *message.Message) error {
	return f(msg)
}

// ValidationError lists every problem found in one message, in the order
// the fields were checked.
type ValidationError struct {
	SchemaID string
	Subject  string
	Problems []string
}

// NewValidationError creates a ValidationError with the given problems
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// Error returns the problems, one per line
func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "\n")
}

// Unwrap lets errors.Is match ErrMessageValidation
func (e *ValidationError) Unwrap() error {
	return errors.ErrMessageValidation
}
