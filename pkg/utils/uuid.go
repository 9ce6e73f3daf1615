package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewUUID generates a new UUIDv7 (time-based).
func NewUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// NewUUIDOrDefault generates a new UUIDv7 (time-based) or returns a default if generation fails.
func NewUUIDOrDefault() string {
	id, err := NewUUID()
	if err != nil {
		// Return a nil UUID string as fallback
		return "00000000-0000-0000-0000-000000000000"
	}
	return id
}

// MustNewUUID generates a new UUIDv7 and panics if generation fails.
func MustNewUUID() string {
	id, err := NewUUID()
	if err != nil {
		panic(err)
	}
	return id
}

// NewUUIDv4 generates a new random (v4) UUID, used where the spec calls for
// a fresh UUID v4 rather than a time-ordered one (certificate/deployment ids).
func NewUUIDv4() string {
	return uuid.New().String()
}

// ParseUUID parses a UUID string, returning an error if malformed.
func ParseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// ValidateUUID reports whether s is a syntactically valid UUID.
func ValidateUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
