package auth

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/internal/utils"
	"github.com/jrsteele09/memauth/users"
	"github.com/rs/zerolog/log"
)

// ListUsers returns one page of users and the total matching the filter.
func (s *Service) ListUsers(ctx context.Context, filter users.ListFilter) ([]*users.User, int, error) {
	if err := s.validator.ValidateListFilter(filter); err != nil {
		return nil, 0, err
	}
	list, total, err := s.repos.Users.List(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("[ListUsers] %w", err)
	}
	return list, total, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*users.User, error) {
	u, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("[GetUser] %w", err)
	}
	return u, nil
}

// UpdateUser applies an admin patch. Deactivating a user revokes all of their
// sessions. The last active admin can be neither demoted nor deactivated.
func (s *Service) UpdateUser(ctx context.Context, id string, patch users.Patch) (*users.User, error) {
	u, _, err := s.updateUser(ctx, id, patch)
	return u, err
}

// DeactivateUser marks the user inactive and returns how many sessions were revoked.
func (s *Service) DeactivateUser(ctx context.Context, id string) (*users.User, int, error) {
	return s.updateUser(ctx, id, users.Patch{Active: utils.Ptr(false)})
}

func (s *Service) updateUser(ctx context.Context, id string, patch users.Patch) (*users.User, int, error) {
	if err := s.validator.ValidatePatch(patch); err != nil {
		return nil, 0, err
	}

	current, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("[UpdateUser] %w", err)
	}
	if removesAdmin(current, patch) {
		others, err := s.repos.Users.CountActiveAdmins(ctx, id)
		if err != nil {
			return nil, 0, fmt.Errorf("[UpdateUser] %w", err)
		}
		if others == 0 {
			return nil, 0, apperrors.ErrLastAdmin
		}
	}

	updated, err := s.repos.Users.Update(ctx, id, patch)
	if err != nil {
		return nil, 0, fmt.Errorf("[UpdateUser] %w", err)
	}

	revoked := 0
	if current.Active && !updated.Active {
		if revoked, err = s.sessions.RevokeAll(ctx, id); err != nil {
			return nil, 0, fmt.Errorf("[UpdateUser] %w", err)
		}
		s.metrics.RecordSessionsRevoked(revoked)
		log.Info().Str("user_id", id).Int("sessions", revoked).Msg("user deactivated")
	}
	return updated, revoked, nil
}

// removesAdmin reports whether patch takes an active admin out of the admin set.
func removesAdmin(u *users.User, patch users.Patch) bool {
	if !u.Active || u.Role != users.RoleAdmin {
		return false
	}
	demoted := patch.Role != nil && *patch.Role != users.RoleAdmin
	deactivated := patch.Active != nil && !utils.Value(patch.Active)
	return demoted || deactivated
}
