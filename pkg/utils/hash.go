package utils

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// IsBcrypt reports whether s already looks like a bcrypt hash.
func IsBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// SecretMatches compares a presented secret against the configured one. The
// configured value may be stored either in plain text or as a bcrypt hash.
// An empty configured secret never matches.
func SecretMatches(configured, presented string) bool {
	if configured == "" {
		return false
	}
	if IsBcrypt(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
