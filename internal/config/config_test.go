package config_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/memauth/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/callback")
	t.Setenv("FRONTEND_ORIGIN", "http://localhost:3000/")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, 10*time.Minute, c.GetStateTTL())
	require.Equal(t, 15*time.Minute, c.GetAccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, c.GetRefreshTokenTTL())
	require.Equal(t, 10*time.Second, c.GetProviderTimeout())
	require.False(t, c.GetRotateRefreshTokens())
	require.Equal(t, []string{"openid", "email", "profile"}, c.GetGoogleScopes())
	require.Equal(t, "http://localhost:3000/auth/callback", c.GetFrontendCallbackURL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("http://localhost:3000"))
	require.Equal(t, http.SameSiteNoneMode, c.GetCookieSameSite())
	require.True(t, c.GetCookieSecure())
	require.Equal(t, config.StoreBackendRedis, c.GetStoreBackend())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", ":9000")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("ROTATE_REFRESH_TOKENS", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("BOOTSTRAP_ADMIN_EMAILS", " Admin@Example.com ,")
	t.Setenv("COOKIE_SAMESITE", "Lax")
	t.Setenv("STORE_BACKEND", "memory")

	c, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, 5*time.Minute, c.GetAccessTokenTTL())
	require.True(t, c.GetRotateRefreshTokens())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("http://localhost:3000"))
	require.Equal(t, []string{"admin@example.com"}, c.GetBootstrapAdminEmails())
	require.Equal(t, http.SameSiteLaxMode, c.GetCookieSameSite())
	require.Equal(t, config.StoreBackendMemory, c.GetStoreBackend())
}

func TestLoadFailsFast(t *testing.T) {
	t.Run("missing signing key", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_SECRET", "")

		_, err := config.Load()
		require.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("private key is enough", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_SECRET", "")
		t.Setenv("JWT_PRIVATE_KEY_PEM", "pem")

		_, err := config.Load()
		require.NoError(t, err)
	})

	t.Run("missing google credentials", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOOGLE_CLIENT_ID", "")
		t.Setenv("GOOGLE_CLIENT_SECRET", "")

		_, err := config.Load()
		require.ErrorContains(t, err, "GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET")
	})

	t.Run("unknown store backend", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_BACKEND", "etcd")

		_, err := config.Load()
		require.Error(t, err)
	})
}
