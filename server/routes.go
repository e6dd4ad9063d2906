package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/memauth/internal/metrics"
	"github.com/jrsteele09/memauth/token/keys"
	"github.com/prometheus/client_golang/prometheus"
)

func (s *Server) initRoutes(gatherer prometheus.Gatherer) {
	r := s.router
	r.Use(
		chimiddleware.RealIP,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.FrameSecurityMiddleware,
		s.CorsMiddleware,
	)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get(RouteAuthLogin, s.LoginHandler())
		r.Get(RouteAuthCallback, s.CallbackHandler())
		r.Post(RouteAuthSession, s.SessionHandler())
		r.With(s.RequireCSRF).Post(RouteAuthRefresh, s.RefreshHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)
			r.Get(RouteAuthMe, s.MeHandler())
			r.With(s.RequireCSRF).Post(RouteAuthLogout, s.LogoutHandler())
			r.With(s.RequireCSRF).Post(RouteAuthLogoutAll, s.LogoutAllHandler())
		})
	})

	// Admin routes; mutations also need the CSRF header
	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuth, s.RequireAdmin)
		r.Get(RouteUsers, s.ListUsersHandler())
		r.Get(RouteUser, s.GetUserHandler())
		r.With(s.RequireCSRF).Patch(RouteUser, s.UpdateUserHandler())
		r.With(s.RequireCSRF).Post(RouteUserDeactivate, s.DeactivateUserHandler())
	})

	r.With(s.RequireInternalSecret).Get(RouteInternalUser, s.GetUserHandler())

	r.Get(RouteHealth, s.HealthHandler())
	r.Method(http.MethodGet, RouteMetrics, metrics.Handler(gatherer))
	if kp, ok := s.auth.Signer().(*keys.KeyPairSigner); ok {
		r.Get(RouteWellKnownJWKS, s.JWKSHandler(kp))
	}
}
