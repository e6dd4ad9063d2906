package config

import (
	"net/http"
	"strings"
)

type SecurityConfig interface {
	GetJWTSecret() string
	GetJWTPrivateKeyPEM() string
	GetJWTKeyID() string
	GetTokenIssuer() string
	GetCookieDomain() string
	GetCookieSecure() bool
	GetCookieSameSite() http.SameSite
	GetRateLimitPerMinute() int
}

type Security struct {
	JWTSecret          string `env:"JWT_SECRET"`
	JWTPrivateKeyPEM   string `env:"JWT_PRIVATE_KEY_PEM"`
	JWTKeyID           string `env:"JWT_KEY_ID" envDefault:"memauth-1"`
	TokenIssuer        string `env:"JWT_ISSUER"`
	CookieDomain       string `env:"COOKIE_DOMAIN"`
	CookieSecure       bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieSameSite     string `env:"COOKIE_SAMESITE" envDefault:"none"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

var _ SecurityConfig = Security{}

func (s Security) GetJWTSecret() string {
	return s.JWTSecret
}

// GetJWTPrivateKeyPEM takes precedence over the shared secret when set.
func (s Security) GetJWTPrivateKeyPEM() string {
	return s.JWTPrivateKeyPEM
}

func (s Security) GetJWTKeyID() string {
	return s.JWTKeyID
}

func (s Security) GetTokenIssuer() string {
	return s.TokenIssuer
}

func (s Security) GetCookieDomain() string {
	return s.CookieDomain
}

func (s Security) GetCookieSecure() bool {
	return s.CookieSecure
}

func (s Security) GetCookieSameSite() http.SameSite {
	switch strings.ToLower(s.CookieSameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}

// GetRateLimitPerMinute applies per client IP to the /auth routes. Zero disables it.
func (s Security) GetRateLimitPerMinute() int {
	return s.RateLimitPerMinute
}
