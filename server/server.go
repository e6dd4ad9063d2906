package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/memauth/auth"
	"github.com/jrsteele09/memauth/internal/config"
	"github.com/jrsteele09/memauth/internal/metrics"
	"github.com/jrsteele09/memauth/kvstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the HTTP surface needs beyond configuration.
type Deps struct {
	Auth     *auth.Service
	Store    kvstore.Store
	Metrics  metrics.Recorder
	Gatherer prometheus.Gatherer
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	router  chi.Router
	config  config.Config
	auth    *auth.Service
	store   kvstore.Store
	metrics metrics.Recorder
	limiter *RateLimiter
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("[Server New] auth service is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[Server New] store is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		env:     cfg.GetEnv(),
		router:  chi.NewRouter(),
		config:  cfg,
		auth:    deps.Auth,
		store:   deps.Store,
		metrics: deps.Metrics,
		limiter: NewRateLimiter(cfg.GetRateLimitPerMinute()),
	}

	s.initRoutes(deps.Gatherer)
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logRoute(method, strings.TrimSuffix(route, "/*"))
		return nil
	})
}

func logRoute(method, path string) {
	log.Debug().Msgf("[%s %-7s%s] %s", methodColour(method), method, ansiReset, path)
}
