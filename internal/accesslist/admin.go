package accesslist

import "crypto/subtle"

// ValidAdminKey performs a constant-time comparison of a supplied admin
// key against the configured one. An empty configured key means admin
// operations are disabled entirely.
func ValidAdminKey(configured, supplied string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}
