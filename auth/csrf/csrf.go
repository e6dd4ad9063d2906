// Package csrf implements the double-submit cookie check: a token readable by
// page script is echoed back in a request header and compared to the cookie.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
)

const (
	CookieName = "csrf_token"
	HeaderName = "X-CSRF-Token"

	tokenBytes = 32
)

// NewToken returns 32 random bytes hex encoded.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[csrf NewToken] failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Check reports whether both values are present and equal.
func Check(cookieToken, headerToken string) bool {
	if cookieToken == "" || headerToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) == 1
}

// Verify is Check returning apperrors.ErrCSRF on failure.
func Verify(cookieToken, headerToken string) error {
	if !Check(cookieToken, headerToken) {
		return apperrors.ErrCSRF
	}
	return nil
}
