package attack

import (
	"fmt"
	"strings"
)

// ParseError indicates an artifact could not be interpreted as its expected
// shape at all. It is fatal for the whole call; the catalog is untouched.
type ParseError struct {
	// Format names the artifact format ("stix", "navigator", "xlsx")
	Format string

	// Reason describes what was wrong with the document
	Reason string

	// Cause is the underlying decode error, if any
	Cause error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot parse %s artifact: %s: %v", e.Format, e.Reason, e.Cause)
	}
	return fmt.Sprintf("cannot parse %s artifact: %s", e.Format, e.Reason)
}

// Unwrap returns the underlying cause error
func (e *ParseError) Unwrap() error {
	return e.Cause
}

func newParseError(format, reason string, cause error) *ParseError {
	return &ParseError{Format: format, Reason: reason, Cause: cause}
}

// ValidationError rejects a kill chain save in full. Issues names every
// offending stage label and technique identifier so the caller can correct
// all of them at once rather than one at a time.
type ValidationError struct {
	Issues []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	switch len(e.Issues) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s", e.Issues[0])
	default:
		return fmt.Sprintf("validation failed with %d issues: %s",
			len(e.Issues), strings.Join(e.Issues, "; "))
	}
}
