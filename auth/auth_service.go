// Package auth ties the provider login, refresh sessions and access tokens
// together. It returns raw values; cookies and redirects belong to the caller.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jrsteele09/memauth/auth/sessions"
	"github.com/jrsteele09/memauth/auth/state"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/internal/metrics"
	"github.com/jrsteele09/memauth/provider"
	"github.com/jrsteele09/memauth/token"
	"github.com/jrsteele09/memauth/token/keys"
	"github.com/jrsteele09/memauth/users"
)

// Provider is the upstream identity provider.
type Provider interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*provider.Tokens, error)
	FetchProfile(ctx context.Context, accessToken string) (*provider.Profile, error)
}

var _ Provider = (*provider.GoogleClient)(nil)

// Repos holds the persistence dependencies of the Service.
type Repos struct {
	Users users.UserRepo
}

// Deps holds the collaborators the Service drives.
type Deps struct {
	States   *state.Service
	Sessions *sessions.Manager
	Provider Provider
	Issuer   *token.Issuer
}

// Service is the auth orchestrator.
type Service struct {
	repos     Repos
	states    *state.Service
	sessions  *sessions.Manager
	provider  Provider
	issuer    *token.Issuer
	validator *Validator
	metrics   metrics.Recorder

	accessTTL       time.Duration
	rotateRefresh   bool
	bootstrapAdmins map[string]struct{}
}

// ServiceOption modifies the Service at construction.
type ServiceOption func(*Service)

func WithAccessTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshRotation makes Refresh replace the refresh token every time.
func WithRefreshRotation(rotate bool) ServiceOption {
	return func(s *Service) {
		s.rotateRefresh = rotate
	}
}

// WithBootstrapAdmins promotes these verified emails to ADMIN when they log in.
func WithBootstrapAdmins(emails []string) ServiceOption {
	return func(s *Service) {
		for _, e := range emails {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				s.bootstrapAdmins[e] = struct{}{}
			}
		}
	}
}

func WithMetrics(r metrics.Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// NewService validates the required dependencies and applies options.
func NewService(repos Repos, deps Deps, options ...ServiceOption) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if deps.States == nil {
		return nil, errors.New("[NewService] state service is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewService] session manager is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("[NewService] provider is required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("[NewService] token issuer is required")
	}

	s := &Service{
		repos:           repos,
		states:          deps.States,
		sessions:        deps.Sessions,
		provider:        deps.Provider,
		issuer:          deps.Issuer,
		validator:       NewValidator(),
		metrics:         metrics.Nop{},
		accessTTL:       token.DefaultAccessTokenTTL,
		bootstrapAdmins: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// AccessTokenTTL is the lifetime of tokens minted by the Service.
func (s *Service) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// SessionTTL is the lifetime of a refresh session, also used for cookie max-age.
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// Signer holds the access token key material.
func (s *Service) Signer() keys.Signer {
	return s.issuer.Signer()
}

// RotatesRefreshTokens reports whether Refresh hands out new refresh tokens.
func (s *Service) RotatesRefreshTokens() bool {
	return s.rotateRefresh
}

func (s *Service) signAccess(u *users.User) (string, error) {
	return s.issuer.Sign(token.Claims{
		Subject: u.ID,
		Email:   u.Email,
		Name:    u.Name,
	}, s.accessTTL)
}

// resultLabel turns an outcome into a metric label.
func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	return apperrors.Code(err)
}
