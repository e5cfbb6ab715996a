package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID identifies platform records: exercises, findings, and kill chain
// versions. It is a UUID string under the hood, kept as a distinct type
// so an exercise ID cannot be passed where a version ID belongs without
// the call site saying so.
type ID string

// NewID generates a random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID validates s as a UUID and returns it in canonical form.
// CLI arguments arrive here; anything that fails to parse is treated
// as a name lookup by the callers instead.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", fmt.Errorf("ID cannot be empty")
	}

	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID format: %w", err)
	}

	return ID(parsed.String()), nil
}

// String returns the full ID string
func (id ID) String() string {
	return string(id)
}

// Short returns the leading 8 characters for table display
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id)[:8]
}

// IsZero reports whether the ID is unset
func (id ID) IsZero() bool {
	return id == ""
}

// MarshalJSON renders an unset ID as null rather than ""
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts null or empty as the zero ID and validates
// everything else as a UUID.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to unmarshal ID: %w", err)
	}

	if s == "" {
		*id = ""
		return nil
	}

	parsed, err := ParseID(s)
	if err != nil {
		return err
	}

	*id = parsed
	return nil
}
