package auth

import (
	"context"
	"fmt"

	"github.com/jrsteele09/memauth/auth/csrf"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/internal/logger"
	"github.com/rs/zerolog/log"
)

// RefreshResult carries a new access token. RefreshToken is set only when the
// session's refresh token was rotated.
type RefreshResult struct {
	AccessToken  string
	ExpiresIn    int // seconds
	RefreshToken string
	Rotated      bool
}

// Refresh mints a new access token for a valid session. The user is read again
// so role and active status changes take effect.
func (s *Service) Refresh(ctx context.Context, userID, sessionID, refreshToken string) (*RefreshResult, error) {
	result, err := s.refresh(ctx, userID, sessionID, refreshToken)
	s.metrics.RecordRefresh(resultLabel(err))
	return result, err
}

func (s *Service) refresh(ctx context.Context, userID, sessionID, refreshToken string) (*RefreshResult, error) {
	if err := s.validateSession(ctx, userID, sessionID, refreshToken); err != nil {
		return nil, fmt.Errorf("[Refresh] %w", err)
	}

	user, err := s.repos.Users.GetByID(ctx, userID)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		if _, rerr := s.sessions.Revoke(ctx, userID, sessionID); rerr != nil {
			log.Err(rerr).Str("user_id", userID).Msg("failed to revoke orphaned session")
		}
		return nil, fmt.Errorf("[Refresh] %w: user no longer exists", apperrors.ErrInvalidSession)
	}
	if err != nil {
		return nil, fmt.Errorf("[Refresh] %w", err)
	}
	if !user.Active {
		return nil, apperrors.ErrAccountDisabled
	}

	accessToken, err := s.signAccess(user)
	if err != nil {
		return nil, fmt.Errorf("[Refresh] %w", err)
	}
	result := &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int(s.accessTTL.Seconds()),
	}

	if s.rotateRefresh {
		rotated, err := s.sessions.Rotate(ctx, userID, sessionID, "")
		if err != nil {
			return nil, fmt.Errorf("[Refresh] %w", err)
		}
		result.RefreshToken = rotated
		result.Rotated = true
	}
	return result, nil
}

func (s *Service) validateSession(ctx context.Context, userID, sessionID, refreshToken string) error {
	ok, err := s.sessions.Validate(ctx, userID, sessionID, refreshToken)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug().Str("user_id", userID).Str("session", logger.Prefix(sessionID)).Msg("session rejected")
		return apperrors.ErrInvalidSession
	}
	return nil
}

// Logout revokes one session. A session that is already gone is not an error.
func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	if _, err := s.sessions.Revoke(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("[Logout] %w", err)
	}
	s.metrics.RecordLogout("session")
	return nil
}

// LogoutAll revokes every session of userID and returns how many there were.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("[LogoutAll] %w", err)
	}
	s.metrics.RecordLogout("all")
	s.metrics.RecordSessionsRevoked(n)
	return n, nil
}

// CreateCookieSession checks the session the caller wants placed in cookies
// and returns the CSRF token to pair with it.
func (s *Service) CreateCookieSession(ctx context.Context, userID, sessionID, refreshToken string) (string, error) {
	if err := s.validateSession(ctx, userID, sessionID, refreshToken); err != nil {
		return "", fmt.Errorf("[CreateCookieSession] %w", err)
	}
	csrfToken, err := csrf.NewToken()
	if err != nil {
		return "", err
	}
	return csrfToken, nil
}
