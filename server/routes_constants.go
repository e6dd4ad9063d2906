package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin     = "/auth/login"
	RouteAuthCallback  = "/auth/callback"
	RouteAuthSession   = "/auth/session"
	RouteAuthRefresh   = "/auth/refresh"
	RouteAuthLogout    = "/auth/logout"
	RouteAuthLogoutAll = "/auth/logout-all"
	RouteAuthMe        = "/auth/me"

	// Admin Routes
	RouteUsers          = "/users"
	RouteUser           = "/users/{id}"
	RouteUserDeactivate = "/users/{id}/deactivate"

	// Service to service
	RouteInternalUser = "/internal/users/{id}"

	// Operational
	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/healthz"
	RouteMetrics       = "/metrics"
)

const internalSecretHeader = "X-Internal-Secret"
