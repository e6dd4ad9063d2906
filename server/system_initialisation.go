package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const startupPingTimeout = 5 * time.Second

// InitialiseSystem checks that the session store answers and logs the
// effective configuration. It is run once before the listener starts.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startupPingTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] session store unreachable: %w", err)
	}

	if s.config.GetCookieSameSite() == http.SameSiteNoneMode && !s.config.GetCookieSecure() {
		log.Warn().Msg("COOKIE_SAMESITE=none without COOKIE_SECURE: browsers will drop the session cookies")
	}
	if s.config.GetInternalServiceSecret() == "" {
		log.Info().Msg("INTERNAL_SERVICE_SECRET not set: internal routes are closed")
	}

	log.Info().
		Str("base_url", s.config.GetBaseURL()).
		Str("frontend", s.config.GetFrontendOrigin()).
		Str("store", s.config.GetStoreBackend()).
		Str("signing_alg", s.auth.Signer().GetSigningMethod().Alg()).
		Dur("access_ttl", s.auth.AccessTokenTTL()).
		Dur("session_ttl", s.auth.SessionTTL()).
		Bool("rotate_refresh", s.auth.RotatesRefreshTokens()).
		Int("bootstrap_admins", len(s.config.GetBootstrapAdminEmails())).
		Msg("system configuration")
	return nil
}
