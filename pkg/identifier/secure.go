package identifier

import "crypto/subtle"

// SecureCompare reports whether two identifiers are equal in constant
// time. Use it when comparing request-supplied tenant identifiers against
// secrets such as provisioning tokens, where a timing side channel would
// leak prefix matches.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
