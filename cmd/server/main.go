package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/memauth/auth"
	"github.com/jrsteele09/memauth/auth/sessions"
	"github.com/jrsteele09/memauth/auth/state"
	"github.com/jrsteele09/memauth/internal/config"
	"github.com/jrsteele09/memauth/internal/logger"
	"github.com/jrsteele09/memauth/internal/metrics"
	"github.com/jrsteele09/memauth/kvstore"
	"github.com/jrsteele09/memauth/kvstore/memstore"
	"github.com/jrsteele09/memauth/provider"
	"github.com/jrsteele09/memauth/server"
	"github.com/jrsteele09/memauth/token"
	"github.com/jrsteele09/memauth/token/keys"
	"github.com/jrsteele09/memauth/users"
	"github.com/jrsteele09/memauth/users/postgres"
	fakeuserrepo "github.com/jrsteele09/memauth/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("server stopped with error, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		// Configuration does not fix itself on retry.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Setup(c.GetEnv(), c.GetLogLevel(), os.Stdout)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	store, closeStore, err := newStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	userRepo, closeUsers, err := newUserRepo(c)
	if err != nil {
		return err
	}
	defer closeUsers()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	authService, err := newAuthService(c, store, userRepo, collector)
	if err != nil {
		return err
	}

	handler, err := server.New(c, server.Deps{
		Auth:     authService,
		Store:    store,
		Metrics:  collector,
		Gatherer: registry,
	})
	if err != nil {
		return fmt.Errorf("[run] %w", err)
	}
	defer handler.Close()

	if err := handler.InitialiseSystem(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func newStore(c config.Config) (kvstore.Store, func(), error) {
	if c.GetStoreBackend() == config.StoreBackendMemory {
		log.Warn().Msg("using the in-memory session store: sessions are lost on restart and not shared between instances")
		return memstore.New(), func() {}, nil
	}

	client, err := kvstore.NewRedisClient(c.GetRedisURL())
	if err != nil {
		return nil, nil, fmt.Errorf("[newStore] %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis client")
		}
	}
	return kvstore.NewRedisStore(client, c.GetStoreTimeout()), closeFn, nil
}

func newUserRepo(c config.Config) (users.UserRepo, func(), error) {
	databaseURL := c.GetDatabaseURL()
	if databaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set: users are kept in memory")
		return fakeuserrepo.NewFakeUserRepo(), func() {}, nil
	}

	if err := postgres.RunMigrations(databaseURL); err != nil {
		return nil, nil, fmt.Errorf("[newUserRepo] %w", err)
	}
	db, err := postgres.Open(databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("[newUserRepo] %w", err)
	}
	return postgres.NewUserRepo(db), closeDB(db), nil
}

func closeDB(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
}

func newAuthService(c config.Config, store kvstore.Store, userRepo users.UserRepo, recorder metrics.Recorder) (*auth.Service, error) {
	signer, err := keys.NewSigner(c.GetJWTSecret(), c.GetJWTPrivateKeyPEM(), c.GetJWTKeyID())
	if err != nil {
		return nil, fmt.Errorf("[newAuthService] %w", err)
	}
	issuer, err := token.NewIssuer(signer, token.WithIssuer(c.GetTokenIssuer()))
	if err != nil {
		return nil, fmt.Errorf("[newAuthService] %w", err)
	}

	var providerOptions []provider.Option
	if c.GetVerifyIDToken() {
		providerOptions = append(providerOptions, provider.WithRemoteIDTokenVerification(""))
	}
	google := provider.NewGoogleClient(provider.Config{
		ClientID:     c.GetGoogleClientID(),
		ClientSecret: c.GetGoogleClientSecret(),
		RedirectURL:  c.GetGoogleRedirectURI(),
		AuthURL:      c.GetGoogleAuthURL(),
		TokenURL:     c.GetGoogleTokenURL(),
		UserInfoURL:  c.GetGoogleUserInfoURL(),
		Issuer:       c.GetGoogleIssuer(),
		Scopes:       c.GetGoogleScopes(),
		Timeout:      c.GetProviderTimeout(),
	}, providerOptions...)

	return auth.NewService(
		auth.Repos{Users: userRepo},
		auth.Deps{
			States:   state.NewService(store, c.GetStateTTL()),
			Sessions: sessions.NewManager(store, c.GetRefreshTokenTTL()),
			Provider: google,
			Issuer:   issuer,
		},
		auth.WithAccessTokenTTL(c.GetAccessTokenTTL()),
		auth.WithRefreshRotation(c.GetRotateRefreshTokens()),
		auth.WithBootstrapAdmins(c.GetBootstrapAdminEmails()),
		auth.WithMetrics(recorder),
	)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
