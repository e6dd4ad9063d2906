package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/memauth/auth/sessions"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/internal/logger"
	"github.com/jrsteele09/memauth/internal/utils"
	"github.com/jrsteele09/memauth/users"
	"github.com/rs/zerolog/log"
)

// LoginResult is everything the caller needs to finish a login. Nothing here
// has been placed in a cookie yet.
type LoginResult struct {
	AccessToken  string
	ExpiresIn    int // seconds
	SessionID    string
	RefreshToken string
	User         *users.User
}

// InitiateLogin issues a state and returns the provider consent URL carrying it.
func (s *Service) InitiateLogin(ctx context.Context) (string, error) {
	st, err := s.states.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("[InitiateLogin] %w", err)
	}
	return s.provider.AuthorizationURL(st), nil
}

// HandleCallback completes a login: the state is consumed, the code exchanged,
// the user upserted, and a new refresh session plus access token created.
func (s *Service) HandleCallback(ctx context.Context, code, st string) (*LoginResult, error) {
	result, err := s.handleCallback(ctx, code, st)
	s.metrics.RecordLogin(resultLabel(err))
	return result, err
}

func (s *Service) handleCallback(ctx context.Context, code, st string) (*LoginResult, error) {
	consumed, err := s.states.Consume(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] %w", err)
	}
	if !consumed {
		log.Warn().Str("state", logger.Prefix(st)).Msg("oauth state rejected")
		return nil, apperrors.ErrInvalidState
	}
	if code == "" {
		return nil, fmt.Errorf("[HandleCallback] %w: missing code", apperrors.ErrInvalidRequest)
	}

	start := time.Now()
	tokens, err := s.provider.Exchange(ctx, code)
	s.metrics.RecordUpstreamLatency("exchange", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] %w", err)
	}

	start = time.Now()
	profile, err := s.provider.FetchProfile(ctx, tokens.AccessToken)
	s.metrics.RecordUpstreamLatency("userinfo", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] %w", err)
	}
	if tokens.IDTokenSubject != "" && tokens.IDTokenSubject != profile.Subject {
		log.Error().Msg("id token subject does not match userinfo subject")
		return nil, fmt.Errorf("[HandleCallback] %w: subject mismatch", apperrors.ErrUpstreamAuth)
	}

	user, err := s.repos.Users.UpsertByExternalSubject(ctx, users.Identity{
		Subject: profile.Subject,
		Email:   profile.Email,
		Name:    profile.Name,
		Avatar:  profile.PictureURL,
	})
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] upsert user: %w", err)
	}
	if user, err = s.promoteBootstrapAdmin(ctx, user, profile.EmailVerified); err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.ErrAccountDisabled
	}

	sessionID := sessions.NewSessionID()
	refreshToken, err := sessions.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] %w", err)
	}
	if err := s.sessions.Create(ctx, user.ID, sessionID, refreshToken); err != nil {
		return nil, fmt.Errorf("[HandleCallback] %w", err)
	}

	accessToken, err := s.signAccess(user)
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] %w", err)
	}

	log.Info().Str("user_id", user.ID).Str("session", logger.Prefix(sessionID)).Msg("login completed")
	return &LoginResult{
		AccessToken:  accessToken,
		ExpiresIn:    int(s.accessTTL.Seconds()),
		SessionID:    sessionID,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

// promoteBootstrapAdmin makes a configured operator an admin on their first
// verified login. Existing admins and unlisted emails are returned unchanged.
func (s *Service) promoteBootstrapAdmin(ctx context.Context, u *users.User, emailVerified bool) (*users.User, error) {
	if !emailVerified || u.Role == users.RoleAdmin {
		return u, nil
	}
	if _, ok := s.bootstrapAdmins[strings.ToLower(u.Email)]; !ok {
		return u, nil
	}

	promoted, err := s.repos.Users.Update(ctx, u.ID, users.Patch{Role: utils.Ptr(users.RoleAdmin)})
	if err != nil {
		return nil, fmt.Errorf("[HandleCallback] promote bootstrap admin: %w", err)
	}
	log.Info().Str("user_id", u.ID).Msg("bootstrap admin promoted")
	return promoted, nil
}
