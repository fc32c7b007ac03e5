package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	ternary "github.com/julien040/go-ternary"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ===== Spotify Accounts OAuth =====

const (
	// SpotifyAuthorizeURL is the default authorization endpoint.
	SpotifyAuthorizeURL = "https://accounts.spotify.com/authorize"
	// SpotifyTokenURL is the default token endpoint used for both grants.
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"

	maxTokenResponseSize = 1 << 20
)

// DefaultScopes is the permission set requested by the web player client.
var DefaultScopes = []string{
	"playlist-read-private",
	"playlist-modify-public",
	"user-read-currently-playing",
	"playlist-read-collaborative",
	"user-read-recently-played",
	"user-modify-playback-state",
	"user-follow-read",
	"playlist-modify-private",
	"app-remote-control",
	"user-top-read",
	"streaming",
	"user-read-private",
	"user-read-playback-state",
	"user-follow-modify",
	"user-read-email",
	"user-library-modify",
	"user-library-read",
}

// spotifyProvider implements the Provider interface for Spotify Accounts.
type spotifyProvider struct {
	oauthConfig    *oauth2.Config
	client         *http.Client // Refresh: every status is relayed.
	exchangeClient *http.Client // Exchange: anything but 200 fails.
	metrics        *flowMetrics
}

// statusOKTransport fails any token endpoint response other than 200 OK
// before x/oauth2 gets to accept it as a 2xx success.
type statusOKTransport struct {
	base http.RoundTripper
}

func (t statusOKTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (s *spotifyProvider) AuthURL(_ context.Context, state string) string {
	return s.oauthConfig.AuthCodeURL(state)
}

// Exchange performs the authorization_code grant. Client credentials travel
// in the Basic Authorization header, never in the form body.
func (s *spotifyProvider) Exchange(ctx context.Context, code string) (*TokenPair, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.exchangeClient)

	start := time.Now()
	token, err := s.oauthConfig.Exchange(ctx, code)
	s.metrics.observeProvider(grantAuthorizationCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToExchangeCode, err)
	}

	return &TokenPair{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// Refresh performs the refresh_token grant. The provider's body is returned
// as-is so the caller can forward it; only a transport failure yields an error.
func (s *spotifyProvider) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"refresh_token": {refreshToken},
		"grant_type":    {grantRefreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauthConfig.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.oauthConfig.ClientID, s.oauthConfig.ClientSecret)

	start := time.Now()
	resp, err := s.client.Do(req)
	s.metrics.observeProvider(grantRefreshToken, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrProviderUnavailable, err)
	}
	return &TokenResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// registerSpotifyOAuth builds the oauth2.Config for the provider from the
// handler configuration, falling back to the public Spotify endpoints and the
// default scope set. Missing credentials are only warned about: the provider
// rejects such requests and the flows surface that as ordinary failures.
func (o *OAuthHandler) registerSpotifyOAuth(ctx context.Context) Provider {
	logger := o.logEnricher(ctx, o.logger).Named("register_spotify")
	if o.config.ClientID == "" || o.config.ClientSecret == "" {
		logger.Warn("Spotify OAuth client ID or secret missing; provider calls will be rejected")
	}

	o.config.AuthorizeURL = ternary.If(o.config.AuthorizeURL != "", o.config.AuthorizeURL, SpotifyAuthorizeURL)
	o.config.TokenURL = ternary.If(o.config.TokenURL != "", o.config.TokenURL, SpotifyTokenURL)
	o.config.Scopes = ternary.If(len(o.config.Scopes) > 0, o.config.Scopes, DefaultScopes)

	p := &spotifyProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     o.config.ClientID,
			ClientSecret: o.config.ClientSecret,
			RedirectURL:  o.config.RedirectURI,
			Scopes:       o.config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   o.config.AuthorizeURL,
				TokenURL:  o.config.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client: &http.Client{Timeout: o.config.ExchangeTimeout},
		exchangeClient: &http.Client{
			Timeout:   o.config.ExchangeTimeout,
			Transport: statusOKTransport{base: http.DefaultTransport},
		},
		metrics: o.metrics,
	}

	logger.Info("Spotify OAuth provider registered",
		zap.String("authorize_url", o.config.AuthorizeURL),
		zap.String("token_url", o.config.TokenURL),
		zap.String("redirect_uri", o.config.RedirectURI))
	return p
}
