package util

import (
	"slices"

	"github.com/google/uuid"
)

// IsValidUUID accepts only the canonical lowercase 36-character form that
// the server itself mints, so ids round-trip byte-for-byte through storage.
func IsValidUUID(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.String() == s
}

// IsValidEnum reports whether value is one of allowed. Empty means unset
// and is accepted.
func IsValidEnum[T ~string](value T, allowed ...T) bool {
	return value == "" || slices.Contains(allowed, value)
}
