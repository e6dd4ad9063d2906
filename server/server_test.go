package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/memauth/auth"
	"github.com/jrsteele09/memauth/auth/sessions"
	"github.com/jrsteele09/memauth/auth/state"
	"github.com/jrsteele09/memauth/internal/config"
	"github.com/jrsteele09/memauth/internal/metrics"
	"github.com/jrsteele09/memauth/kvstore/memstore"
	"github.com/jrsteele09/memauth/provider"
	"github.com/jrsteele09/memauth/server"
	"github.com/jrsteele09/memauth/token"
	"github.com/jrsteele09/memauth/token/keys"
	"github.com/jrsteele09/memauth/users"
	fakeuserrepo "github.com/jrsteele09/memauth/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	frontendOrigin = "http://app.example.com"
	internalSecret = "internal-s3cret"
	csrfValue      = "csrf-test-value"
)

type stubProvider struct{}

func (stubProvider) AuthorizationURL(st string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + url.QueryEscape(st)
}

func (stubProvider) Exchange(_ context.Context, code string) (*provider.Tokens, error) {
	return &provider.Tokens{AccessToken: "upstream-" + code}, nil
}

func (stubProvider) FetchProfile(_ context.Context, _ string) (*provider.Profile, error) {
	return &provider.Profile{Subject: "google-1", Email: "ada@example.com", EmailVerified: true, Name: "Ada"}, nil
}

type testFixture struct {
	server   *server.Server
	userRepo *fakeuserrepo.FakeUserRepo
	issuer   *token.Issuer
	registry *prometheus.Registry
}

func setupTestFixture(t *testing.T, env map[string]string) *testFixture {
	t.Helper()

	defaults := map[string]string{
		"ENV":                     "TEST",
		"JWT_SECRET":              "server-test-secret",
		"GOOGLE_CLIENT_ID":        "client-id",
		"GOOGLE_CLIENT_SECRET":    "client-secret",
		"GOOGLE_REDIRECT_URI":     "http://localhost:8080/auth/callback",
		"FRONTEND_ORIGIN":         frontendOrigin,
		"STORE_BACKEND":           "memory",
		"COOKIE_SAMESITE":         "lax",
		"INTERNAL_SERVICE_SECRET": internalSecret,
		"RATE_LIMIT_PER_MINUTE":   "100",
	}
	for k, v := range env {
		defaults[k] = v
	}
	for k, v := range defaults {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	store := memstore.New()
	issuer, err := token.NewIssuer(keys.NewHMACSigner(cfg.GetJWTSecret()))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	userRepo := fakeuserrepo.NewFakeUserRepo()

	authService, err := auth.NewService(
		auth.Repos{Users: userRepo},
		auth.Deps{
			States:   state.NewService(store, cfg.GetStateTTL()),
			Sessions: sessions.NewManager(store, cfg.GetRefreshTokenTTL()),
			Provider: stubProvider{},
			Issuer:   issuer,
		},
		auth.WithMetrics(collector),
	)
	require.NoError(t, err)

	srv, err := server.New(cfg, server.Deps{
		Auth:     authService,
		Store:    store,
		Metrics:  collector,
		Gatherer: registry,
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return &testFixture{server: srv, userRepo: userRepo, issuer: issuer, registry: registry}
}

type requestOption func(*http.Request)

func withBearer(tok string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookie(name, value string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func withCSRF(value string) requestOption {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "csrf_token", Value: value})
		r.Header.Set("X-CSRF-Token", value)
	}
}

func withHeader(name, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(name, value) }
}

func (f *testFixture) do(method, target string, body any, options ...requestOption) *httptest.ResponseRecorder {
	var payload *strings.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		payload = strings.NewReader(string(b))
	} else {
		payload = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, payload)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range options {
		opt(req)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

// login runs /auth/login and /auth/callback and returns the frontend query.
func (f *testFixture) login(t *testing.T) url.Values {
	t.Helper()

	rec := f.do(http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	consent, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	st := consent.Query().Get("state")
	require.NotEmpty(t, st)

	rec = f.do(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(st), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	landing, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, frontendOrigin+"/auth/callback", landing.Scheme+"://"+landing.Host+landing.Path)
	q := landing.Query()
	require.Empty(t, q.Get("error"))
	return q
}

func (f *testFixture) adminToken(t *testing.T) string {
	t.Helper()
	admin := f.userRepo.Put(&users.User{Email: "root@example.com", Role: users.RoleAdmin, Active: true})
	tok, err := f.issuer.Sign(token.Claims{Subject: admin.ID}, time.Minute)
	require.NoError(t, err)
	return tok
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCallbackRedirects(t *testing.T) {
	f := setupTestFixture(t, nil)

	q := f.login(t)
	require.NotEmpty(t, q.Get("accessToken"))
	require.NotEmpty(t, q.Get("sessionId"))
	require.Len(t, q.Get("refreshToken"), 128)
	require.Equal(t, "ada@example.com", q.Get("email"))

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "provider error", query: "error=access_denied", want: "access_denied"},
		{name: "unsafe provider error", query: "error=%3Cscript%3E", want: "auth_failed"},
		{name: "missing code", query: "state=abc", want: "missing_params"},
		{name: "missing state", query: "code=abc", want: "missing_params"},
		{name: "unknown state", query: "code=abc&state=never-issued", want: "invalid_state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/auth/callback?"+tt.query, nil)
			require.Equal(t, http.StatusFound, rec.Code)
			landing, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			require.Equal(t, tt.want, landing.Query().Get("error"))
			require.Empty(t, landing.Query().Get("accessToken"))
		})
	}
}

func TestSessionCookiesAndRefresh(t *testing.T) {
	f := setupTestFixture(t, nil)
	q := f.login(t)

	rec := f.do(http.MethodPost, "/auth/session", map[string]string{
		"sessionId":    q.Get("sessionId"),
		"refreshToken": q.Get("refreshToken"),
		"userId":       q.Get("userId"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	refreshCookie := cookieByName(rec, "refresh_token")
	require.NotNil(t, refreshCookie)
	require.True(t, refreshCookie.HttpOnly)
	require.True(t, refreshCookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, refreshCookie.SameSite)
	require.Equal(t, 7*24*60*60, refreshCookie.MaxAge)
	require.Equal(t, "/", refreshCookie.Path)

	csrfCookie := cookieByName(rec, "csrf_token")
	require.NotNil(t, csrfCookie)
	require.False(t, csrfCookie.HttpOnly, "page script must read the csrf cookie")
	require.Len(t, csrfCookie.Value, 64)

	refreshBody := map[string]string{"sessionId": q.Get("sessionId"), "userId": q.Get("userId")}

	rec = f.do(http.MethodPost, "/auth/refresh", refreshBody,
		withCookie("refresh_token", refreshCookie.Value), withCSRF(csrfCookie.Value))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	require.NotEmpty(t, body["accessToken"])
	require.EqualValues(t, 900, body["expiresIn"])

	// Owner taken from the bearer token when the body has no userId.
	rec = f.do(http.MethodPost, "/auth/refresh", map[string]string{"sessionId": q.Get("sessionId")},
		withCookie("refresh_token", refreshCookie.Value), withCSRF(csrfCookie.Value), withBearer(q.Get("accessToken")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/auth/refresh", refreshBody, withCookie("refresh_token", refreshCookie.Value))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "csrf_mismatch", decodeBody(t, rec)["error"])

	rec = f.do(http.MethodPost, "/auth/refresh", refreshBody,
		withCookie("refresh_token", refreshCookie.Value), withCookie("csrf_token", "a"), withHeader("X-CSRF-Token", "b"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/auth/refresh", refreshBody, withCookie("refresh_token", "forged"), withCSRF(csrfValue))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_session", decodeBody(t, rec)["error"])
	cleared := cookieByName(rec, "refresh_token")
	require.NotNil(t, cleared)
	require.Negative(t, cleared.MaxAge)

	rec = f.do(http.MethodPost, "/auth/refresh", refreshBody, withCSRF(csrfValue))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	expected := `
# HELP memauth_csrf_rejections_total Requests rejected by the CSRF double-submit check.
# TYPE memauth_csrf_rejections_total counter
memauth_csrf_rejections_total 2
`
	require.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "memauth_csrf_rejections_total"))
}

func TestSessionRejectsUnknownSession(t *testing.T) {
	f := setupTestFixture(t, nil)
	q := f.login(t)

	rec := f.do(http.MethodPost, "/auth/session", map[string]string{
		"sessionId":    q.Get("sessionId"),
		"refreshToken": "not-the-token",
		"userId":       q.Get("userId"),
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, cookieByName(rec, "refresh_token"))

	rec = f.do(http.MethodPost, "/auth/session", map[string]string{"sessionId": q.Get("sessionId")})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/auth/session", map[string]string{"unexpected": "field"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMeAndLogout(t *testing.T) {
	f := setupTestFixture(t, nil)
	first := f.login(t)
	second := f.login(t)
	bearer := withBearer(first.Get("accessToken"))

	rec := f.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/auth/me", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	require.Equal(t, "ada@example.com", me["email"])
	require.Equal(t, "USER", me["role"])
	require.Equal(t, true, me["isActive"])

	body := map[string]string{"sessionId": first.Get("sessionId")}
	rec = f.do(http.MethodPost, "/auth/logout", body, bearer)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/auth/logout", body, bearer, withCSRF(csrfValue))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Negative(t, cookieByName(rec, "csrf_token").MaxAge)

	rec = f.do(http.MethodPost, "/auth/refresh", map[string]string{"sessionId": first.Get("sessionId"), "userId": first.Get("userId")},
		withCookie("refresh_token", first.Get("refreshToken")), withCSRF(csrfValue))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/auth/logout-all", nil, bearer, withCSRF(csrfValue))
	require.Equal(t, http.StatusOK, rec.Code)
	all := decodeBody(t, rec)
	require.EqualValues(t, 1, all["count"])
	require.Equal(t, "logged out of 1 sessions", all["message"])

	rec = f.do(http.MethodPost, "/auth/refresh", map[string]string{"sessionId": second.Get("sessionId"), "userId": second.Get("userId")},
		withCookie("refresh_token", second.Get("refreshToken")), withCSRF(csrfValue))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	f := setupTestFixture(t, nil)
	q := f.login(t)
	adminBearer := withBearer(f.adminToken(t))

	rec := f.do(http.MethodGet, "/users", nil, withBearer(q.Get("accessToken")))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "forbidden", decodeBody(t, rec)["error"])

	rec = f.do(http.MethodGet, "/users?role=USER&limit=5", nil, adminBearer)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	require.EqualValues(t, 1, list["total"])
	require.EqualValues(t, 5, list["limit"])

	rec = f.do(http.MethodGet, "/users?isActive=maybe", nil, adminBearer)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	userPath := "/users/" + q.Get("userId")
	rec = f.do(http.MethodGet, userPath, nil, adminBearer)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/users/unknown", nil, adminBearer)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPatch, userPath, map[string]string{"name": "Ada L"}, adminBearer)
	require.Equal(t, http.StatusForbidden, rec.Code, "mutations need csrf")

	rec = f.do(http.MethodPatch, userPath, map[string]string{"name": "Ada L"}, adminBearer, withCSRF(csrfValue))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ada L", decodeBody(t, rec)["name"])

	rec = f.do(http.MethodPatch, userPath, map[string]string{"role": "OWNER"}, adminBearer, withCSRF(csrfValue))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, userPath+"/deactivate", nil, adminBearer, withCSRF(csrfValue))
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decodeBody(t, rec)["revokedSessions"])

	rec = f.do(http.MethodGet, "/auth/me", nil, withBearer(q.Get("accessToken")))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "account_disabled", decodeBody(t, rec)["error"])
}

func TestInternalRoute(t *testing.T) {
	f := setupTestFixture(t, nil)
	q := f.login(t)
	path := "/internal/users/" + q.Get("userId")

	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, path, nil).Code)
	require.Equal(t, http.StatusForbidden, f.do(http.MethodGet, path, nil, withHeader("X-Internal-Secret", "nope")).Code)

	rec := f.do(http.MethodGet, path, nil, withHeader("X-Internal-Secret", internalSecret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, q.Get("userId"), decodeBody(t, rec)["id"])
}

func TestOperationalRoutes(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.login(t)

	rec := f.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `memauth_logins_total{result="success"} 1`)

	rec = f.do(http.MethodGet, "/.well-known/jwks.json", nil)
	require.Equal(t, http.StatusNotFound, rec.Code, "no jwks for a shared secret")
}

func TestCORS(t *testing.T) {
	f := setupTestFixture(t, nil)

	rec := f.do(http.MethodOptions, "/auth/refresh", nil, withHeader("Origin", frontendOrigin))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, frontendOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-CSRF-Token")

	rec = f.do(http.MethodOptions, "/auth/refresh", nil, withHeader("Origin", "https://evil.example.com"))
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"RATE_LIMIT_PER_MINUTE": "2"})

	require.Equal(t, http.StatusFound, f.do(http.MethodGet, "/auth/login", nil).Code)
	require.Equal(t, http.StatusFound, f.do(http.MethodGet, "/auth/login", nil).Code)
	rec := f.do(http.MethodGet, "/auth/login", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate_limited", decodeBody(t, rec)["error"])

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil).Code, "only /auth is limited")
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t, nil)

	h := f.server.RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	require.NotContains(t, rec.Body.String(), "boom")
	require.NotEmpty(t, body["error"])
}

func TestRateLimiter(t *testing.T) {
	rl := server.NewRateLimiter(1)
	t.Cleanup(rl.Stop)

	require.True(t, rl.Allow("10.0.0.1"))
	require.False(t, rl.Allow("10.0.0.1"))
	require.True(t, rl.Allow("10.0.0.2"), "clients are limited separately")
	require.Equal(t, 2, rl.Len())

	off := server.NewRateLimiter(0)
	t.Cleanup(off.Stop)
	for i := 0; i < 100; i++ {
		require.True(t, off.Allow("10.0.0.1"))
	}
}
