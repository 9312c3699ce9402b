// Package errors provides standardized error handling for the GMSEC message
// specification engine and its services. It includes error classification,
// GMSEC error codes, standard error variables, and helpers for consistent
// error wrapping across the module.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code is the coarse GMSEC error kind carried alongside the class.
type Code int

// GMSEC error codes.
const (
	CodeNone Code = iota
	CodeConfig
	CodeInvalidConfigValue
	CodeSchemaParse
	CodeSchemaNotFound
	CodeFieldTemplateNotFound
	CodeFieldNotFound
	CodeInvalidType
	CodeFieldConversion
	CodeUnknownMessageType
	CodeMessageValidation
	CodeNullValidator
	CodeConnection
	CodeService
)

var codeNames = map[Code]string{
	CodeNone:                  "NONE",
	CodeConfig:                "CONFIG_ERROR",
	CodeInvalidConfigValue:    "INVALID_CONFIG_VALUE",
	CodeSchemaParse:           "SCHEMA_PARSE_ERROR",
	CodeSchemaNotFound:        "SCHEMA_NOT_FOUND",
	CodeFieldTemplateNotFound: "FIELD_TEMPLATE_NOT_FOUND",
	CodeFieldNotFound:         "FIELD_NOT_FOUND",
	CodeInvalidType:           "INVALID_TYPE",
	CodeFieldConversion:       "FIELD_TYPE_CONVERSION",
	CodeUnknownMessageType:    "UNKNOWN_MESSAGE_TYPE",
	CodeMessageValidation:     "MESSAGE_FAILED_VALIDATION",
	CodeNullValidator:         "NULL_VALIDATOR",
	CodeConnection:            "CONNECTION_ERROR",
	CodeService:               "SERVICE_ERROR",
}

// String returns the GMSEC name of the code
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Standard error variables for common conditions
var (
	// Service lifecycle errors
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotStarted     = errors.New("service not started")
	ErrShuttingDown   = errors.New("service is shutting down")

	// Connection errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrNotInitialized    = errors.New("connection manager not initialized")
	ErrUnknownMiddleware = errors.New("unknown middleware")

	// Configuration errors
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInvalidConfigValue = errors.New("invalid configuration value")
	ErrMissingConfig      = errors.New("missing required configuration")

	// Schema definition errors
	ErrSchemaParse    = errors.New("schema parse failed")
	ErrSchemaNotFound = errors.New("schema not found")
	ErrDuplicateID    = errors.New("duplicate schema id")
	ErrIncludeCycle   = errors.New("include cycle")

	// Lookup errors
	ErrFieldTemplateNotFound = errors.New("field template not found")
	ErrFieldNotFound         = errors.New("field not found")

	// Field and message errors
	ErrInvalidType        = errors.New("invalid field type")
	ErrFieldConversion    = errors.New("field type conversion failed")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMessageValidation  = errors.New("message failed validation")
	ErrNullValidator      = errors.New("message validator is nil")
	ErrInvalidData        = errors.New("invalid data format")
)

var sentinelCodes = []struct {
	err  error
	code Code
}{
	{ErrInvalidConfigValue, CodeInvalidConfigValue},
	{ErrInvalidConfig, CodeConfig},
	{ErrMissingConfig, CodeConfig},
	{ErrSchemaParse, CodeSchemaParse},
	{ErrDuplicateID, CodeSchemaParse},
	{ErrIncludeCycle, CodeSchemaParse},
	{ErrSchemaNotFound, CodeSchemaNotFound},
	{ErrFieldTemplateNotFound, CodeFieldTemplateNotFound},
	{ErrFieldNotFound, CodeFieldNotFound},
	{ErrInvalidType, CodeInvalidType},
	{ErrFieldConversion, CodeFieldConversion},
	{ErrUnknownMessageType, CodeUnknownMessageType},
	{ErrMessageValidation, CodeMessageValidation},
	{ErrNullValidator, CodeNullValidator},
	{ErrNoConnection, CodeConnection},
	{ErrConnectionLost, CodeConnection},
	{ErrConnectionTimeout, CodeConnection},
	{ErrNotInitialized, CodeConnection},
	{ErrUnknownMiddleware, CodeConnection},
	{ErrAlreadyStarted, CodeService},
	{ErrNotStarted, CodeService},
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Code      Code
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// CodeOf returns the GMSEC code carried by err. Classified errors report
// their own code; otherwise the first matching sentinel decides.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Code != CodeNone {
		return ce.Code
	}

	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return CodeNone
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidConfigValue) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrSchemaParse)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrFieldConversion) ||
		errors.Is(err, ErrMessageValidation)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Code:      CodeOf(err),
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Newf formats a message and wraps the sentinel so that errors.Is and
// CodeOf keep working on the result.
func Newf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
