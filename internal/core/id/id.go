// Package id provides UUIDv7 key generation for records.
// UUIDv7 is time-ordered, so freshly inserted rows cluster at the
// right edge of the primary-key index.
package id

import (
	"github.com/google/uuid"
)

// ID is the primary-key type shared by all records.
type ID = uuid.UUID

// New generates a new UUIDv7 (RFC 9562).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the entropy source does; fall back to V4.
		return uuid.New()
	}
	return id
}

// Parse converts a string to an ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts a string to an ID, panicking on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns the zero-value ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether id is the zero value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
