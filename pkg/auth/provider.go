package auth

import "context"

// Provider defines the server-side operations performed against the identity provider.
type Provider interface {
	// AuthURL generates the provider-specific authorization URL for the given state.
	AuthURL(ctx context.Context, state string) string
	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*TokenPair, error)
	// Refresh trades a refresh token for a new access token. A non-nil
	// TokenResponse is returned whenever the provider answered, whatever its status.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}
