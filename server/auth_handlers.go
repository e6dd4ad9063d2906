package server

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/rs/zerolog/hlog"
)

// providerErrorPattern bounds what a provider supplied error may echo back.
var providerErrorPattern = regexp.MustCompile(`^[a-z_]{1,64}$`)

// LoginHandler starts the provider login.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirect, err := s.auth.InitiateLogin(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

// CallbackHandler finishes the provider login and hands the result to the
// frontend callback page in the query string. Failures carry only an error code.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if providerErr := q.Get("error"); providerErr != "" {
			hlog.FromRequest(r).Warn().Str("provider_error", providerErr).Msg("provider returned an error")
			if !providerErrorPattern.MatchString(providerErr) {
				providerErr = "auth_failed"
			}
			s.redirectToFrontend(w, r, url.Values{"error": {providerErr}})
			return
		}

		code, state := q.Get("code"), q.Get("state")
		if code == "" || state == "" {
			s.redirectToFrontend(w, r, url.Values{"error": {"missing_params"}})
			return
		}

		result, err := s.auth.HandleCallback(r.Context(), code, state)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("login callback failed")
			s.redirectToFrontend(w, r, url.Values{"error": {callbackErrorCode(err)}})
			return
		}

		s.redirectToFrontend(w, r, url.Values{
			"accessToken":  {result.AccessToken},
			"sessionId":    {result.SessionID},
			"refreshToken": {result.RefreshToken},
			"userId":       {result.User.ID},
			"email":        {result.User.Email},
			"name":         {result.User.Name},
			"avatar":       {result.User.Avatar},
		})
	}
}

func callbackErrorCode(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidState):
		return "invalid_state"
	case apperrors.Is(err, apperrors.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "auth_failed"
	}
}

func (s *Server) redirectToFrontend(w http.ResponseWriter, r *http.Request, params url.Values) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, s.config.GetFrontendCallbackURL()+"?"+params.Encode(), http.StatusFound)
}

type sessionRequest struct {
	SessionID    string `json:"sessionId"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId,omitempty"`
}

// ownerID picks the session owner from the body, or else from the subject of
// a correctly signed bearer token, expired or not.
func (s *Server) ownerID(r *http.Request, bodyUserID string) (string, error) {
	if bodyUserID != "" {
		return bodyUserID, nil
	}
	raw := bearerToken(r)
	if raw == "" {
		return "", fmt.Errorf("%w: userId is required", apperrors.ErrInvalidRequest)
	}
	return s.auth.SubjectFromToken(raw)
}

// SessionHandler moves a freshly issued refresh session into cookies.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.SessionID == "" || req.RefreshToken == "" {
			writeError(w, r, fmt.Errorf("%w: sessionId and refreshToken are required", apperrors.ErrInvalidRequest))
			return
		}
		userID, err := s.ownerID(r, req.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		csrfToken, err := s.auth.CreateCookieSession(r.Context(), userID, req.SessionID, req.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.SetSessionCookies(w, req.RefreshToken, csrfToken)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

// RefreshHandler mints a new access token from the refresh cookie.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, r, fmt.Errorf("%w: missing refresh cookie", apperrors.ErrInvalidSession))
			return
		}

		var req sessionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.SessionID == "" {
			writeError(w, r, fmt.Errorf("%w: sessionId is required", apperrors.ErrInvalidRequest))
			return
		}
		userID, err := s.ownerID(r, req.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		result, err := s.auth.Refresh(r.Context(), userID, req.SessionID, cookie.Value)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidSession) || apperrors.Is(err, apperrors.ErrAccountDisabled) {
				s.ClearSessionCookies(w)
			}
			writeError(w, r, err)
			return
		}
		if result.Rotated {
			s.SetRefreshCookie(w, result.RefreshToken)
		}
		writeJSON(w, http.StatusOK, refreshResponse{
			AccessToken: result.AccessToken,
			ExpiresIn:   result.ExpiresIn,
		})
	}
}

// LogoutHandler revokes the current session and clears the cookies.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())

		var req sessionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.SessionID == "" {
			writeError(w, r, fmt.Errorf("%w: sessionId is required", apperrors.ErrInvalidRequest))
			return
		}

		if err := s.auth.Logout(r.Context(), identity.UserID, req.SessionID); err != nil {
			writeError(w, r, err)
			return
		}
		s.ClearSessionCookies(w)
		writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

type logoutAllResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// LogoutAllHandler revokes every session of the caller.
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())

		n, err := s.auth.LogoutAll(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.ClearSessionCookies(w)
		writeJSON(w, http.StatusOK, logoutAllResponse{
			Count:   n,
			Message: fmt.Sprintf("logged out of %d sessions", n),
		})
	}
}

// MeHandler returns the caller's current profile.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())

		user, err := s.auth.Me(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
