// Package sessions stores refresh sessions. A user may hold many sessions at
// once, one per device, each keyed by (userID, sessionID) and holding the
// refresh token issued to that device.
package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrsteele09/memauth/kvstore"
)

const (
	keyPrefix         = "session:"
	refreshTokenBytes = 64 // 512 bits
)

// NewSessionID returns a random UUIDv4.
func NewSessionID() string {
	return uuid.NewString()
}

// NewRefreshToken returns 64 random bytes hex encoded.
func NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[NewRefreshToken] failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Key is where the refresh token for one device session lives.
func Key(userID, sessionID string) string {
	return keyPrefix + userID + ":" + sessionID
}

// UserPattern matches every session key of userID and nothing else.
func UserPattern(userID string) string {
	return keyPrefix + kvstore.EscapePattern(userID) + ":*"
}

const maxIDLength = 128

// validID accepts only the UUID and hex alphabet the service generates, so an
// id can never hold the key separator or a glob metacharacter.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
