package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/jrsteele09/memauth/auth"
	"github.com/jrsteele09/memauth/auth/csrf"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the *auth.Identity of the caller
const ContextKeyIdentity ContextKey = "identity"

// IdentityFromContext returns the identity placed by RequireAuth.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(ContextKeyIdentity).(*auth.Identity)
	return identity, ok && identity != nil
}

// RequireAuth validates the Bearer access token and the current state of its
// user, then places the identity in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, apperrors.Wrapf(apperrors.ErrInvalidToken, "missing bearer token"))
			return
		}

		identity, err := s.auth.VerifyAccess(r.Context(), raw)
		if err != nil {
			writeError(w, r, err)
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", identity.UserID)
		})
		ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCSRF enforces the double-submit check: the X-CSRF-Token header must
// equal the csrf_token cookie.
func (s *Server) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cookieToken string
		if c, err := r.Cookie(csrf.CookieName); err == nil {
			cookieToken = c.Value
		}

		if err := csrf.Verify(cookieToken, r.Header.Get(csrf.HeaderName)); err != nil {
			s.metrics.RecordCSRFRejection()
			hlog.FromRequest(r).Warn().Str("path", r.URL.Path).Msg("csrf check failed")
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after RequireAuth.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, r, apperrors.ErrInvalidToken)
			return
		}
		if !identity.IsAdmin() {
			writeError(w, r, apperrors.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireInternalSecret guards service to service routes with a shared secret.
// With no secret configured the routes are closed.
func (s *Server) RequireInternalSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := s.config.GetInternalServiceSecret()
		got := r.Header.Get(internalSecretHeader)
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
			writeError(w, r, apperrors.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
