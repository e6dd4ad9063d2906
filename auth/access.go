package auth

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/users"
)

// Identity is the caller behind a verified access token. Role comes from the
// user record, never from the token.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	Role      users.RoleType
	TokenID   string
	ExpiresAt time.Time
}

func (i *Identity) IsAdmin() bool {
	return i.Role == users.RoleAdmin
}

// VerifyAccess checks the token and then the current state of its user.
func (s *Service) VerifyAccess(ctx context.Context, raw string) (*Identity, error) {
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("[VerifyAccess] %w", err)
	}
	return &Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// SubjectFromToken returns the user id of a correctly signed token even when
// it has expired. It proves nothing about the caller by itself.
func (s *Service) SubjectFromToken(raw string) (string, error) {
	return s.issuer.SubjectIgnoringExpiry(raw)
}

// Me returns the current record of the authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (*users.User, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("[Me] %w", err)
	}
	return user, nil
}

func (s *Service) activeUser(ctx context.Context, userID string) (*users.User, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.ErrAccountDisabled
	}
	return user, nil
}
