package security

import "time"

// NewTestTokenProvider returns a TokenProvider with fixed secrets and short
// TTLs. For unit tests only.
func NewTestTokenProvider() *TokenProvider {
	return NewTokenProvider(
		[]byte("test-access-secret"),
		[]byte("test-refresh-secret"),
		"test-issuer",
		time.Hour,
		7*24*time.Hour,
	)
}
