package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/memauth/auth/csrf"
)

// refreshCookieName holds the refresh token; page script never sees it.
const refreshCookieName = "refresh_token"

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) sessionCookie(name, value string, httpOnly bool, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.config.GetCookieDomain(),
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   s.config.GetCookieSecure(),
		SameSite: s.config.GetCookieSameSite(),
	}
}

func (s *Server) cookieMaxAge() int {
	return int(s.auth.SessionTTL().Seconds())
}

// SetRefreshCookie sets the HttpOnly refresh token cookie.
func (s *Server) SetRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, s.sessionCookie(refreshCookieName, refreshToken, true, s.cookieMaxAge()))
}

// SetSessionCookies sets the refresh token cookie and the script readable
// CSRF cookie with the same lifetime.
func (s *Server) SetSessionCookies(w http.ResponseWriter, refreshToken, csrfToken string) {
	s.SetRefreshCookie(w, refreshToken)
	http.SetCookie(w, s.sessionCookie(csrf.CookieName, csrfToken, false, s.cookieMaxAge()))
}

func (s *Server) ClearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.sessionCookie(refreshCookieName, "", true, -1))
	http.SetCookie(w, s.sessionCookie(csrf.CookieName, "", false, -1))
}
