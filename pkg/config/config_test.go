package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Config reads so host settings do not leak in.
// t.Setenv registers the restore, including for values a .env file sets later.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODE", "DEV_BASE_URL", "DEV_REDIRECT_URI", "PROD_BASE_URL", "PROD_REDIRECT_URI",
		"CLIENT_ID", "CLIENT_SECRET", "PORT", "SCOPES", "AUTHORIZE_URL", "TOKEN_URL",
		"EXCHANGE_TIMEOUT", "STATE_TTL", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ModeDev, cfg.Mode)
	assert.Equal(t, 8888, cfg.Port)
	assert.Equal(t, ":8888", cfg.Addr())
	assert.Equal(t, "https://accounts.spotify.com/authorize", cfg.AuthorizeURL)
	assert.Equal(t, "https://accounts.spotify.com/api/token", cfg.TokenURL)
	assert.Equal(t, 10*time.Second, cfg.ExchangeTimeout)
	assert.Equal(t, 10*time.Minute, cfg.StateTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Nil(t, cfg.Scopes)
	assert.Empty(t, cfg.LogLevel)
	assert.False(t, cfg.IsProd())
}

func TestParse_ActiveMode(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		expected Mode
		secure   bool
	}{
		{name: "dev", mode: "dev", expected: Mode{BaseURL: "http://localhost:3000", RedirectURI: "http://localhost:8888/callback"}},
		{name: "prod", mode: "prod", expected: Mode{BaseURL: "https://app.example.com", RedirectURI: "https://auth.example.com/callback"}, secure: true},
		{name: "case_insensitive", mode: " PROD ", expected: Mode{BaseURL: "https://app.example.com", RedirectURI: "https://auth.example.com/callback"}, secure: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("MODE", tt.mode)
			t.Setenv("DEV_BASE_URL", "http://localhost:3000")
			t.Setenv("DEV_REDIRECT_URI", "http://localhost:8888/callback")
			t.Setenv("PROD_BASE_URL", "https://app.example.com")
			t.Setenv("PROD_REDIRECT_URI", "https://auth.example.com/callback")
			t.Setenv("CLIENT_ID", "id")
			t.Setenv("CLIENT_SECRET", "secret")

			cfg, err := Parse()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.ActiveMode())

			oauthCfg := cfg.OAuthConfig()
			assert.Equal(t, tt.expected.BaseURL, oauthCfg.BaseURL)
			assert.Equal(t, tt.expected.RedirectURI, oauthCfg.RedirectURI)
			assert.Equal(t, "id", oauthCfg.ClientID)
			assert.Equal(t, "secret", oauthCfg.ClientSecret)
			assert.Equal(t, tt.secure, oauthCfg.SecureCookies)
		})
	}
}

func TestParse_UnknownMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODE", "staging")

	_, err := Parse()
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParse_ListsAndDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCOPES", "user-read-email  streaming")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("EXCHANGE_TIMEOUT", "3s")
	t.Setenv("PORT", "9000")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"user-read-email", "streaming"}, cfg.Scopes)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.ExchangeTimeout)
	assert.Equal(t, ":9000", cfg.Addr())
}

func TestParse_InvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-port")

	_, err := Parse()
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MODE=prod\nPROD_BASE_URL=https://app.example.com\nCLIENT_ID=from-file\n"), 0o600))
	// Variables already present in the environment take precedence.
	t.Setenv("CLIENT_ID", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeProd, cfg.Mode)
	assert.Equal(t, "https://app.example.com", cfg.ActiveMode().BaseURL)
	assert.Equal(t, "from-env", cfg.ClientID)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ModeDev, cfg.Mode)
}
