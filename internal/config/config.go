package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
	GetFrontendOrigin() string
	GetFrontendCallbackURL() string
	GetDatabaseURL() string
	GetInternalServiceSecret() string
	GetBootstrapAdminEmails() []string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
}

// Load reads the process environment once. The returned value is never
// mutated afterwards.
func Load() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config Load] parse environment: %w", err)
	}

	var missing []string
	if c.Security.JWTSecret == "" && c.Security.JWTPrivateKeyPEM == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.OAuth.ClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}
	if c.OAuth.ClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}
	if c.OAuth.RedirectURI == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URI")
	}
	if c.EnvVars.FrontendOrigin == "" {
		missing = append(missing, "FRONTEND_ORIGIN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("[config Load] required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if c.Store.Backend != StoreBackendRedis && c.Store.Backend != StoreBackendMemory {
		return nil, fmt.Errorf("[config Load] unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if len(c.Cors.Origins) == 0 {
		c.Cors.Origins = []string{c.EnvVars.FrontendOrigin}
	}
	c.Cors.allowed = make(AllowedOrigins, len(c.Cors.Origins))
	for _, o := range c.Cors.Origins {
		c.Cors.allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = nullValue{}
	}

	return c, nil
}
