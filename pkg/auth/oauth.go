package auth

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TokenPair holds the opaque tokens returned by a successful code exchange.
// They are passed through to the client application untouched.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is the raw outcome of a refresh call: the provider's status
// code and its response body, forwarded verbatim to the caller.
type TokenResponse struct {
	StatusCode int
	Body       []byte
}

// OAuthConfig holds the resolved, immutable configuration for the broker.
// BaseURL and RedirectURI belong to the active deployment mode.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	Scopes       []string

	BaseURL     string // Client application root the user agent is sent back to.
	RedirectURI string // Callback URL registered with the provider.

	// ExchangeTimeout bounds every server-to-server call to the token endpoint.
	ExchangeTimeout time.Duration
	// StateTTL is the lifetime of the anti-forgery cookie.
	StateTTL time.Duration
	// SecureCookies marks the state cookie Secure (production deployments).
	SecureCookies bool
}

// Predefined errors related to the OAuth process.
var (
	// ErrStateMismatch indicates the callback state did not match the issued cookie.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrFailedToExchangeCode indicates an error occurred during the token exchange process.
	ErrFailedToExchangeCode = errors.New("failed to exchange code for token")
	// ErrProviderUnavailable indicates the token endpoint could not be reached or timed out.
	ErrProviderUnavailable = errors.New("token endpoint unavailable")
	// ErrInvalidRefreshRequest indicates the refresh request body could not be decoded.
	ErrInvalidRefreshRequest = errors.New("invalid refresh request")
)

const (
	defaultExchangeTimeout = 10 * time.Second
	defaultStateTTL        = 10 * time.Minute
)

// OAuthHandler serves the login, callback and refresh flows against a single provider.
type OAuthHandler struct {
	provider    Provider                                                  // Token endpoint and authorize URL builder.
	logger      *zap.Logger                                               // Shared logger instance.
	logEnricher func(ctx context.Context, logger *zap.Logger) *zap.Logger // Adds request-scoped fields.
	metrics     *flowMetrics

	config OAuthConfig // Stores the initial configuration.
}

// NewOAuthHandler creates and initializes a new OAuthHandler instance.
// It requires a zap logger and an OAuthConfig configuration. Metrics are
// registered on reg when it is non-nil.
// Returns nil if the provided config is nil.
func NewOAuthHandler(
	logger *zap.Logger,
	logEnricher func(ctx context.Context, logger *zap.Logger) *zap.Logger,
	config *OAuthConfig,
	reg prometheus.Registerer,
) *OAuthHandler {

	if config == nil {
		logger.Error("OAuth config is nil")
		return nil
	}
	if logEnricher == nil {
		logEnricher = func(_ context.Context, l *zap.Logger) *zap.Logger { return l }
	}

	cfg := *config
	cfg.Scopes = append([]string(nil), config.Scopes...)
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = defaultExchangeTimeout
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}

	handler := &OAuthHandler{
		logger:      logger.Named("oauth"),
		config:      cfg,
		logEnricher: logEnricher,
		metrics:     newFlowMetrics(),
	}
	if reg != nil {
		if err := handler.metrics.register(reg); err != nil {
			handler.logger.Warn("Failed to register OAuth metrics", zap.Error(err))
		}
	}

	handler.provider = handler.registerSpotifyOAuth(context.Background())
	return handler
}

// Config returns a copy of the handler's configuration.
func (h *OAuthHandler) Config() OAuthConfig {
	return h.config
}

// Stop performs any cleanup needed for the OAuthHandler
func (h *OAuthHandler) Stop() {
	h.logger.Info("OAuthHandler stopped.")
}
