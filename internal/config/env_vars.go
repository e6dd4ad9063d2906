package config

import "strings"

type EnvVars struct {
	Port                  string   `env:"PORT" envDefault:"8080"`
	AppName               string   `env:"APP_NAME" envDefault:"mem auth"`
	Environment           string   `env:"ENV" envDefault:"DEV"`
	LogLevel              string   `env:"LOG_LEVEL" envDefault:"info"`
	BaseURL               string   `env:"BASE_URL" envDefault:"http://localhost:8080"`
	FrontendOrigin        string   `env:"FRONTEND_ORIGIN"`
	FrontendCallbackPath  string   `env:"FRONTEND_CALLBACK_PATH" envDefault:"/auth/callback"`
	DatabaseURL           string   `env:"DATABASE_URL"`
	InternalServiceSecret string   `env:"INTERNAL_SERVICE_SECRET"`
	BootstrapAdminEmails  []string `env:"BOOTSTRAP_ADMIN_EMAILS" envSeparator:","`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	if strings.HasPrefix(e.Port, ":") {
		return e.Port
	}
	return ":" + e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Environment
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetBaseURL returns the public URL of this service (e.g., "https://auth.example.com")
func (e EnvVars) GetBaseURL() string {
	return e.BaseURL
}

func (e EnvVars) GetFrontendOrigin() string {
	return strings.TrimRight(e.FrontendOrigin, "/")
}

// GetFrontendCallbackURL is where the browser lands after the provider callback.
func (e EnvVars) GetFrontendCallbackURL() string {
	return e.GetFrontendOrigin() + e.FrontendCallbackPath
}

// GetDatabaseURL is empty when users are kept in memory.
func (e EnvVars) GetDatabaseURL() string {
	return e.DatabaseURL
}

func (e EnvVars) GetInternalServiceSecret() string {
	return e.InternalServiceSecret
}

func (e EnvVars) GetBootstrapAdminEmails() []string {
	emails := make([]string, 0, len(e.BootstrapAdminEmails))
	for _, em := range e.BootstrapAdminEmails {
		if em = strings.ToLower(strings.TrimSpace(em)); em != "" {
			emails = append(emails, em)
		}
	}
	return emails
}
