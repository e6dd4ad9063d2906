package sessions

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/internal/logger"
	"github.com/jrsteele09/memauth/kvstore"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is the lifetime of a refresh session. It is reset on rotation.
const DefaultTTL = 7 * 24 * time.Hour

// Manager creates, validates and revokes refresh sessions. Revoked and
// expired sessions look the same: the key is gone.
type Manager struct {
	store kvstore.Store
	ttl   time.Duration
}

func NewManager(store kvstore.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl}
}

// TTL is the lifetime given to new and rotated sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create stores refreshToken for the session, replacing any previous value.
func (m *Manager) Create(ctx context.Context, userID, sessionID, refreshToken string) error {
	if !validID(userID) || !validID(sessionID) || refreshToken == "" {
		return fmt.Errorf("[sessions Create] %w: user, session and token are required", apperrors.ErrInvalidRequest)
	}
	if err := m.store.Set(ctx, Key(userID, sessionID), refreshToken, m.ttl); err != nil {
		return fmt.Errorf("[sessions Create] %w", err)
	}
	log.Debug().Str("user_id", userID).Str("session", logger.Prefix(sessionID)).Msg("session created")
	return nil
}

// Validate reports whether refreshToken is the one stored for the session.
func (m *Manager) Validate(ctx context.Context, userID, sessionID, refreshToken string) (bool, error) {
	if !validID(userID) || !validID(sessionID) || refreshToken == "" {
		return false, nil
	}

	stored, found, err := m.store.Get(ctx, Key(userID, sessionID))
	if err != nil {
		return false, fmt.Errorf("[sessions Validate] %w", err)
	}
	if !found || len(stored) != len(refreshToken) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) == 1, nil
}

// Revoke deletes one session. Revoking a missing session is not an error.
func (m *Manager) Revoke(ctx context.Context, userID, sessionID string) (bool, error) {
	if !validID(userID) || !validID(sessionID) {
		return false, nil
	}
	existed, err := m.store.Delete(ctx, Key(userID, sessionID))
	if err != nil {
		return false, fmt.Errorf("[sessions Revoke] %w", err)
	}
	return existed, nil
}

// RevokeAll deletes every session of userID and returns how many went. A
// session created while the sweep runs may survive it.
func (m *Manager) RevokeAll(ctx context.Context, userID string) (int, error) {
	if !validID(userID) {
		return 0, nil
	}
	n, err := m.store.DeleteMatching(ctx, UserPattern(userID))
	if err != nil {
		return 0, fmt.Errorf("[sessions RevokeAll] %w", err)
	}
	log.Info().Str("user_id", userID).Int("count", n).Msg("sessions revoked")
	return n, nil
}

// Rotate stores newToken for an existing session and resets its TTL. An empty
// newToken generates one. A session that has been revoked in the meantime is
// not brought back.
func (m *Manager) Rotate(ctx context.Context, userID, sessionID, newToken string) (string, error) {
	if !validID(userID) || !validID(sessionID) {
		return "", fmt.Errorf("[sessions Rotate] %w: malformed user or session id", apperrors.ErrInvalidRequest)
	}
	if newToken == "" {
		var err error
		if newToken, err = NewRefreshToken(); err != nil {
			return "", err
		}
	}

	replaced, err := m.store.Replace(ctx, Key(userID, sessionID), newToken, m.ttl)
	if err != nil {
		return "", fmt.Errorf("[sessions Rotate] %w", err)
	}
	if !replaced {
		return "", fmt.Errorf("[sessions Rotate] %w", apperrors.ErrInvalidSession)
	}
	return newToken, nil
}
