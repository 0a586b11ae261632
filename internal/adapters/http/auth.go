package httpadapter

import (
	"crypto/subtle"
	"strings"
)

// isAuthorizedToken compares a caller supplied token in constant time. An empty expected token
// authorizes nobody.
func isAuthorizedToken(got, expected string) bool {
	got = strings.TrimSpace(got)
	if got == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
