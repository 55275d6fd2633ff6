package utils

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns the 64-bit content hash of raw bytes as 16 hex chars.
// Used for exact-duplicate detection on upload and for chunk content hashes.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// FingerprintString hashes a string without copying it to a byte slice.
func FingerprintString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
