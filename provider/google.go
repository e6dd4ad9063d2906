// Package provider talks to the external OAuth2 identity provider (Google).
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL    = "https://oauth2.googleapis.com/token"
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	DefaultIssuer      = "https://accounts.google.com"
	DefaultJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	DefaultTimeout     = 10 * time.Second

	maxBodyBytes = 1 << 20
	maxLogBody   = 512
)

// DefaultScopes requested at the consent screen.
var DefaultScopes = []string{oidc.ScopeOpenID, "email", "profile"}

// Profile is the identity returned by the userinfo endpoint.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	PictureURL    string `json:"picture"`
}

// Tokens returned by the code exchange. IDTokenSubject is only set when the
// ID token was present and verified.
type Tokens struct {
	AccessToken    string
	RefreshToken   string
	IDToken        string
	IDTokenSubject string
	Expiry         time.Time
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Issuer       string
	Scopes       []string
	Timeout      time.Duration
}

// GoogleClient performs the authorization code flow against Google.
type GoogleClient struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	timeout     time.Duration
	issuerURL   string
	jwksURL     string
	verifier    *oidc.IDTokenVerifier
}

type Option func(*GoogleClient)

// WithHTTPClient replaces the transport used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(g *GoogleClient) {
		g.httpClient = c
	}
}

// WithIDTokenVerifier verifies the ID token returned by the exchange.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) Option {
	return func(g *GoogleClient) {
		g.verifier = v
	}
}

// WithRemoteIDTokenVerification verifies ID tokens against the provider's
// published signing keys.
func WithRemoteIDTokenVerification(jwksURL string) Option {
	return func(g *GoogleClient) {
		if jwksURL == "" {
			jwksURL = DefaultJWKSURL
		}
		g.jwksURL = jwksURL
	}
}

func NewGoogleClient(cfg Config, options ...Option) *GoogleClient {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	g := &GoogleClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		timeout:     cfg.Timeout,
		issuerURL:   cfg.Issuer,
	}
	for _, opt := range options {
		opt(g)
	}

	if g.verifier == nil && g.jwksURL != "" {
		ctx := oidc.ClientContext(context.Background(), g.httpClient)
		keySet := oidc.NewRemoteKeySet(ctx, g.jwksURL)
		g.verifier = oidc.NewVerifier(g.issuerURL, keySet, &oidc.Config{ClientID: g.oauth.ClientID})
	}
	return g
}

// AuthorizationURL builds the consent screen URL. Offline access with forced
// consent makes the provider return a refresh token every time.
func (g *GoogleClient) AuthorizationURL(state string) string {
	return g.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (g *GoogleClient) clientContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient), cancel
}

// Exchange trades an authorization code for provider tokens. Provider error
// bodies are logged here and never returned.
func (g *GoogleClient) Exchange(ctx context.Context, code string) (*Tokens, error) {
	if code == "" {
		return nil, fmt.Errorf("[Exchange] %w: empty authorization code", apperrors.ErrUpstreamAuth)
	}

	ctx, cancel := g.clientContext(ctx)
	defer cancel()

	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			log.Error().
				Int("status", status).
				Str("error_code", re.ErrorCode).
				Str("body", truncate(string(re.Body), maxLogBody)).
				Msg("provider token exchange rejected")
		} else {
			log.Err(err).Msg("provider token exchange failed")
		}
		return nil, fmt.Errorf("[Exchange] %w: token exchange failed", apperrors.ErrUpstreamAuth)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("[Exchange] %w: empty access token", apperrors.ErrUpstreamAuth)
	}

	tokens := &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	tokens.IDToken, _ = tok.Extra("id_token").(string)

	if g.verifier != nil && tokens.IDToken != "" {
		idToken, err := g.verifier.Verify(ctx, tokens.IDToken)
		if err != nil {
			log.Err(err).Msg("provider id token rejected")
			return nil, fmt.Errorf("[Exchange] %w: id token verification failed", apperrors.ErrUpstreamAuth)
		}
		tokens.IDTokenSubject = idToken.Subject
	}
	return tokens, nil
}

// FetchProfile reads the user's identity with the provider access token.
func (g *GoogleClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	ctx, cancel := g.clientContext(ctx)
	defer cancel()

	client := g.oauth.Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("[FetchProfile] %w: build request: %v", apperrors.ErrUpstreamAuth, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Err(err).Msg("provider userinfo request failed")
		return nil, fmt.Errorf("[FetchProfile] %w: userinfo request failed", apperrors.ErrUpstreamAuth)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("[FetchProfile] %w: read userinfo: %v", apperrors.ErrUpstreamAuth, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncate(string(body), maxLogBody)).
			Msg("provider userinfo rejected")
		return nil, fmt.Errorf("[FetchProfile] %w: userinfo status %d", apperrors.ErrUpstreamAuth, resp.StatusCode)
	}

	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("[FetchProfile] %w: malformed userinfo", apperrors.ErrUpstreamAuth)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("[FetchProfile] %w: userinfo without subject", apperrors.ErrUpstreamAuth)
	}
	return &p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
