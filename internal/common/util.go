package common

import "strings"

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// It is used to drop plaintext passwords read from a terminal once they have
// been hashed.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address so
// that lookups and the unique index agree on one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
