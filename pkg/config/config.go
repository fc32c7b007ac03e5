// Package config resolves the broker's immutable configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Suhaibinator/tokenbroker/pkg/auth"
)

// Deployment modes.
const (
	ModeDev  = "dev"
	ModeProd = "prod"
)

// ErrUnknownMode is returned when MODE names neither "dev" nor "prod".
var ErrUnknownMode = errors.New("unknown mode")

// Mode is the per-deployment pair of client application URL and provider callback URL.
type Mode struct {
	BaseURL     string
	RedirectURI string
}

// Config is built once at startup and handed to every component.
type Config struct {
	Mode string `env:"MODE" envDefault:"dev"`

	DevBaseURL      string `env:"DEV_BASE_URL"`
	DevRedirectURI  string `env:"DEV_REDIRECT_URI"`
	ProdBaseURL     string `env:"PROD_BASE_URL"`
	ProdRedirectURI string `env:"PROD_REDIRECT_URI"`

	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	Port int `env:"PORT" envDefault:"8888"`

	// Scopes is space-delimited, matching the provider's scope parameter.
	Scopes       []string `env:"SCOPES" envSeparator:" "`
	AuthorizeURL string   `env:"AUTHORIZE_URL" envDefault:"https://accounts.spotify.com/authorize"`
	TokenURL     string   `env:"TOKEN_URL" envDefault:"https://accounts.spotify.com/api/token"`

	ExchangeTimeout time.Duration `env:"EXCHANGE_TIMEOUT" envDefault:"10s"`
	StateTTL        time.Duration `env:"STATE_TTL" envDefault:"10m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	// LogLevel overrides the mode's default level (debug in dev, info in prod).
	LogLevel string `env:"LOG_LEVEL"`
}

// Load reads envFile into the process environment when it exists (variables
// already set win) and parses the environment into a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse()
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Scopes = trimEmpty(cfg.Scopes)
	cfg.CORSAllowedOrigins = trimEmpty(cfg.CORSAllowedOrigins)

	if cfg.Mode != ModeDev && cfg.Mode != ModeProd {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
	return &cfg, nil
}

// ActiveMode returns the URLs of the selected deployment mode.
func (c *Config) ActiveMode() Mode {
	if c.Mode == ModeProd {
		return Mode{BaseURL: c.ProdBaseURL, RedirectURI: c.ProdRedirectURI}
	}
	return Mode{BaseURL: c.DevBaseURL, RedirectURI: c.DevRedirectURI}
}

// IsProd reports whether the production mode is active.
func (c *Config) IsProd() bool {
	return c.Mode == ModeProd
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// OAuthConfig projects the configuration onto what the OAuth handler needs.
func (c *Config) OAuthConfig() *auth.OAuthConfig {
	mode := c.ActiveMode()
	return &auth.OAuthConfig{
		ClientID:        c.ClientID,
		ClientSecret:    c.ClientSecret,
		AuthorizeURL:    c.AuthorizeURL,
		TokenURL:        c.TokenURL,
		Scopes:          c.Scopes,
		BaseURL:         mode.BaseURL,
		RedirectURI:     mode.RedirectURI,
		ExchangeTimeout: c.ExchangeTimeout,
		StateTTL:        c.StateTTL,
		SecureCookies:   c.IsProd(),
	}
}

// trimEmpty removes blank entries from a separator-split slice.
func trimEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
