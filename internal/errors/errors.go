package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the auth core. Anything raised by the provider or the
// session store is translated into one of these before it leaves the core.
var (
	// Login flow
	ErrInvalidState = errors.New("invalid or expired oauth state")
	ErrUpstreamAuth = errors.New("authentication failed")

	// Sessions and tokens
	ErrInvalidSession = errors.New("invalid session")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrCSRF           = errors.New("csrf token mismatch")

	// Users
	ErrAccountDisabled = errors.New("account disabled")
	ErrUserNotFound    = errors.New("user not found")
	ErrLastAdmin       = errors.New("cannot remove the last active admin")

	// General
	ErrInvalidRequest = errors.New("invalid request")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

type kind struct {
	err     error
	status  int
	code    string
	message string
}

// Order matters: ErrTokenExpired wraps ErrInvalidToken so it is listed first.
var kinds = []kind{
	{ErrInvalidState, http.StatusBadRequest, "invalid_state", "invalid or expired login request"},
	{ErrUpstreamAuth, http.StatusBadGateway, "auth_failed", "authentication failed"},
	{ErrInvalidSession, http.StatusUnauthorized, "invalid_session", "invalid session"},
	{ErrTokenExpired, http.StatusUnauthorized, "token_expired", "access token expired"},
	{ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "invalid access token"},
	{ErrUserNotFound, http.StatusUnauthorized, "user_not_found", "user not found"},
	{ErrCSRF, http.StatusForbidden, "csrf_mismatch", "csrf token mismatch"},
	{ErrAccountDisabled, http.StatusForbidden, "account_disabled", "account disabled"},
	{ErrForbidden, http.StatusForbidden, "forbidden", "insufficient permissions"},
	{ErrLastAdmin, http.StatusConflict, "last_admin", "cannot remove the last active admin"},
	{ErrInvalidRequest, http.StatusBadRequest, "invalid_request", "invalid request"},
	{ErrNotFound, http.StatusNotFound, "not_found", "not found"},
}

func lookup(err error) (kind, bool) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k, true
		}
	}
	return kind{}, false
}

// StatusCode maps an error to the HTTP status written at the boundary.
func StatusCode(err error) int {
	if k, ok := lookup(err); ok {
		return k.status
	}
	return http.StatusInternalServerError
}

// Code returns the short machine readable code for err.
func Code(err error) string {
	if k, ok := lookup(err); ok {
		return k.code
	}
	return "internal_error"
}

// PublicMessage returns text that is safe to show a client. Wrapped detail is
// never included.
func PublicMessage(err error) string {
	if k, ok := lookup(err); ok {
		return k.message
	}
	return "internal error"
}
