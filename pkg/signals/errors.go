package signals

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable capture failure taxonomy. Validation
// failures are recoverable and returned to callers as typed results so
// collaborators can render specific guidance.
type ErrorCode string

const (
	CodeUnknownSignal        ErrorCode = "unknown_signal"
	CodeSourceNotAllowed     ErrorCode = "source_not_allowed"
	CodeInvalidUnit          ErrorCode = "invalid_unit"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeRequiresConfirmation ErrorCode = "requires_confirmation"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeAlreadyResolved      ErrorCode = "already_resolved"
	CodeStorageFailure       ErrorCode = "storage_failure"
)

// Error is a typed capture failure. Storage failures wrap the underlying
// cause for logging but expose only the generic code to callers.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapStorage(err error) *Error {
	return &Error{Code: CodeStorageFailure, Message: "storage operation failed", cause: err}
}

// CodeOf extracts the error code, or empty for untyped errors.
func CodeOf(err error) ErrorCode {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return ""
}

// IsCode reports whether err carries the given capture error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
