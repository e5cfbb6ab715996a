package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewID(t *testing.T) {
	id := NewID()

	if id.IsZero() {
		t.Fatal("NewID() returned zero value")
	}
	if _, err := uuid.Parse(string(id)); err != nil {
		t.Errorf("NewID() generated invalid UUID: %v", err)
	}
	if NewID() == id {
		t.Error("NewID() generated duplicate IDs")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid UUID", "550e8400-e29b-41d4-a716-446655440000", false},
		{"empty string", "", true},
		{"not a UUID", "not-a-uuid", true},
		{"partial UUID", "550e8400-e29b-41d4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Error("ParseID() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID() unexpected error: %v", err)
			}
			if id.String() != tt.input {
				t.Errorf("ParseID() = %v, want %v", id.String(), tt.input)
			}
		})
	}

	t.Run("normalizes case", func(t *testing.T) {
		id, err := ParseID("550E8400-E29B-41D4-A716-446655440000")
		if err != nil {
			t.Fatalf("ParseID() unexpected error: %v", err)
		}
		if id != ID("550e8400-e29b-41d4-a716-446655440000") {
			t.Errorf("ParseID() did not normalize: %v", id)
		}
	})
}

func TestIDShort(t *testing.T) {
	id := ID("550e8400-e29b-41d4-a716-446655440000")
	if id.Short() != "550e8400" {
		t.Errorf("Short() = %q, want %q", id.Short(), "550e8400")
	}

	if ID("abc").Short() != "abc" {
		t.Errorf("Short() on short ID = %q, want unchanged", ID("abc").Short())
	}
}

func TestIDJSON(t *testing.T) {
	t.Run("zero ID marshals as null", func(t *testing.T) {
		data, err := json.Marshal(ID(""))
		if err != nil {
			t.Fatalf("Marshal error: %v", err)
		}
		if string(data) != "null" {
			t.Errorf("Marshal(zero) = %s, want null", data)
		}
	})

	t.Run("round trip preserves ID", func(t *testing.T) {
		original := NewID()

		data, err := json.Marshal(original)
		if err != nil {
			t.Fatalf("Marshal error: %v", err)
		}

		var decoded ID
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if decoded != original {
			t.Errorf("round trip: got %v, want %v", decoded, original)
		}
	})

	t.Run("rejects malformed values", func(t *testing.T) {
		var id ID
		if err := id.UnmarshalJSON([]byte(`"not-a-uuid"`)); err == nil {
			t.Error("expected error for malformed UUID")
		}
		if err := id.UnmarshalJSON([]byte(`123`)); err == nil {
			t.Error("expected error for non-string value")
		}
	})

	t.Run("null unmarshals to zero", func(t *testing.T) {
		var id ID
		if err := id.UnmarshalJSON([]byte(`null`)); err != nil {
			t.Fatalf("Unmarshal error: %v", err)
		}
		if !id.IsZero() {
			t.Errorf("expected zero ID, got %v", id)
		}
	})
}
