package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for RTOps platform errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	CONFIG_NOT_FOUND         ErrorCode = "CONFIG_NOT_FOUND"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
	DB_CONNECTION_LOST  ErrorCode = "DB_CONNECTION_LOST"
)

// Initialization error codes
const (
	INIT_DIRS_FAILED       ErrorCode = "INIT_DIRS_FAILED"
	INIT_CONFIG_FAILED     ErrorCode = "INIT_CONFIG_FAILED"
	INIT_DB_FAILED         ErrorCode = "INIT_DB_FAILED"
	INIT_VALIDATION_FAILED ErrorCode = "INIT_VALIDATION_FAILED"
)

// Technique catalog error codes
const (
	CATALOG_TECHNIQUE_NOT_FOUND ErrorCode = "CATALOG_TECHNIQUE_NOT_FOUND"
	CATALOG_TECHNIQUE_INVALID   ErrorCode = "CATALOG_TECHNIQUE_INVALID"
	CATALOG_UPSERT_FAILED       ErrorCode = "CATALOG_UPSERT_FAILED"
)

// Artifact import error codes
const (
	IMPORT_PARSE_FAILED    ErrorCode = "IMPORT_PARSE_FAILED"
	IMPORT_WORKBOOK_FAILED ErrorCode = "IMPORT_WORKBOOK_FAILED"
)

// Kill chain error codes
const (
	KILLCHAIN_VALIDATION_FAILED ErrorCode = "KILLCHAIN_VALIDATION_FAILED"
	KILLCHAIN_SAVE_FAILED       ErrorCode = "KILLCHAIN_SAVE_FAILED"
	KILLCHAIN_NOT_FOUND         ErrorCode = "KILLCHAIN_NOT_FOUND"
)

// Exercise and finding error codes
const (
	EXERCISE_NOT_FOUND ErrorCode = "EXERCISE_NOT_FOUND"
	FINDING_NOT_FOUND  ErrorCode = "FINDING_NOT_FOUND"
	FINDING_INVALID    ErrorCode = "FINDING_INVALID"
)

// PlatformError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type PlatformError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *PlatformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a PlatformError with the same Code.
func (e *PlatformError) Is(target error) bool {
	var platformErr *PlatformError
	if errors.As(target, &platformErr) {
		return e.Code == platformErr.Code
	}
	return false
}

// NewError creates a new non-retryable PlatformError with the given code and message.
func NewError(code ErrorCode, message string) *PlatformError {
	return &PlatformError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable PlatformError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., a busy database).
func NewRetryableError(code ErrorCode, message string) *PlatformError {
	return &PlatformError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable PlatformError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *PlatformError {
	return &PlatformError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// IsCode reports whether err carries the given platform error code.
func IsCode(err error, code ErrorCode) bool {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Code == code
	}
	return false
}
