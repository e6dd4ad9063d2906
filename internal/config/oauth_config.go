package config

import "time"

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleRedirectURI() string
	GetGoogleAuthURL() string
	GetGoogleTokenURL() string
	GetGoogleUserInfoURL() string
	GetGoogleIssuer() string
	GetGoogleScopes() []string
	GetVerifyIDToken() bool
	GetProviderTimeout() time.Duration
	GetStateTTL() time.Duration
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRotateRefreshTokens() bool
}

type OAuth struct {
	ClientID        string        `env:"GOOGLE_CLIENT_ID"`
	ClientSecret    string        `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI     string        `env:"GOOGLE_REDIRECT_URI"`
	AuthURL         string        `env:"GOOGLE_AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/v2/auth"`
	TokenURL        string        `env:"GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	UserInfoURL     string        `env:"GOOGLE_USERINFO_URL" envDefault:"https://www.googleapis.com/oauth2/v3/userinfo"`
	Issuer          string        `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	Scopes          []string      `env:"GOOGLE_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`
	VerifyIDToken   bool          `env:"VERIFY_ID_TOKEN" envDefault:"false"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	StateTTL        time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	RotateRefresh   bool          `env:"ROTATE_REFRESH_TOKENS" envDefault:"false"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetGoogleClientID() string {
	return o.ClientID
}

func (o OAuth) GetGoogleClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetGoogleRedirectURI() string {
	return o.RedirectURI
}

func (o OAuth) GetGoogleAuthURL() string {
	return o.AuthURL
}

func (o OAuth) GetGoogleTokenURL() string {
	return o.TokenURL
}

func (o OAuth) GetGoogleUserInfoURL() string {
	return o.UserInfoURL
}

func (o OAuth) GetGoogleIssuer() string {
	return o.Issuer
}

func (o OAuth) GetGoogleScopes() []string {
	return o.Scopes
}

func (o OAuth) GetVerifyIDToken() bool {
	return o.VerifyIDToken
}

func (o OAuth) GetProviderTimeout() time.Duration {
	return o.ProviderTimeout
}

// GetStateTTL is how long a login may sit at the consent screen.
func (o OAuth) GetStateTTL() time.Duration {
	return o.StateTTL
}

func (o OAuth) GetAccessTokenTTL() time.Duration {
	return o.AccessTokenTTL
}

func (o OAuth) GetRefreshTokenTTL() time.Duration {
	return o.RefreshTokenTTL
}

func (o OAuth) GetRotateRefreshTokens() bool {
	return o.RotateRefresh
}
