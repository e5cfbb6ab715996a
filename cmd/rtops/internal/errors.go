package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/attack"
	"github.com/hacker-sp/RTOps-Management-Platform/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitCriticalFindings indicates open critical findings were reported
	ExitCriticalFindings = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitValidationError indicates input that failed catalog or kill chain validation
	ExitValidationError = 11
	// ExitDatabaseError indicates a database error
	ExitDatabaseError = 12
	// ExitNotFound indicates a referenced record does not exist
	ExitNotFound = 13
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError handles an error and returns the appropriate exit code.
// It also prints the error message to the command's error output.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil && IsVerbose() {
			cmd.PrintErrln("Cause:", cliErr.Cause)
		}
		return cliErr.Code
	}

	// Kill chain and finding validation failures enumerate every issue,
	// so print the full message rather than a summary.
	var valErr *attack.ValidationError
	if errors.As(err, &valErr) {
		cmd.PrintErrln("Error:", valErr.Error())
		return ExitValidationError
	}

	var parseErr *attack.ParseError
	if errors.As(err, &parseErr) {
		cmd.PrintErrln("Error:", parseErr.Error())
		return ExitValidationError
	}

	var platformErr *types.PlatformError
	if errors.As(err, &platformErr) {
		exitCode := mapPlatformErrorToExitCode(platformErr)
		cmd.PrintErrln("Error:", platformErr.Error())
		if platformErr.Cause != nil && IsVerbose() {
			cmd.PrintErrln("Cause:", platformErr.Cause)
		}
		return exitCode
	}

	cmd.PrintErrln("Error:", err)
	return ExitError
}

// mapPlatformErrorToExitCode maps PlatformError codes to CLI exit codes
func mapPlatformErrorToExitCode(err *types.PlatformError) int {
	switch err.Code {
	case types.CONFIG_LOAD_FAILED,
		types.CONFIG_PARSE_FAILED,
		types.CONFIG_VALIDATION_FAILED,
		types.CONFIG_NOT_FOUND,
		types.INIT_DIRS_FAILED,
		types.INIT_CONFIG_FAILED,
		types.INIT_DB_FAILED,
		types.INIT_VALIDATION_FAILED:
		return ExitConfigError
	case types.DB_OPEN_FAILED,
		types.DB_MIGRATION_FAILED,
		types.DB_QUERY_FAILED,
		types.DB_CONNECTION_LOST:
		return ExitDatabaseError
	case types.CATALOG_TECHNIQUE_NOT_FOUND,
		types.KILLCHAIN_NOT_FOUND,
		types.EXERCISE_NOT_FOUND,
		types.FINDING_NOT_FOUND:
		return ExitNotFound
	case types.CATALOG_TECHNIQUE_INVALID,
		types.KILLCHAIN_VALIDATION_FAILED,
		types.IMPORT_PARSE_FAILED,
		types.IMPORT_WORKBOOK_FAILED,
		types.FINDING_INVALID:
		return ExitValidationError
	default:
		return ExitError
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var platformErr *types.PlatformError
	if errors.As(err, &platformErr) {
		return platformErr.Retryable
	}
	return false
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag.
// This is used for panic recovery to determine if stack traces should be shown.
func IsVerbose() bool {
	if os.Getenv("RTOPS_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}
