package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/http"
)

const (
	// StateCookieName is the cookie carrying the anti-forgery state between login and callback.
	StateCookieName = "spotify_auth_state"
	// StateLength is the number of characters in a generated state token.
	StateLength = 16

	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateState returns a random alphanumeric string of the given length.
// The token only has to be hard to replay for the lifetime of one login
// attempt; it is not a credential.
func GenerateState(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("state length must be positive, got %d", length)
	}
	alphabetSize := big.NewInt(int64(len(stateAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate random state: %w", err)
		}
		b[i] = stateAlphabet[n.Int64()]
	}
	return string(b), nil
}

// setStateCookie stores the state on the user agent. SameSite=Lax keeps the
// cookie on the top-level redirect back from the provider.
func (h *OAuthHandler) setStateCookie(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.config.StateTTL.Seconds()),
	})
}

// clearStateCookie removes the state cookie by setting MaxAge to -1.
func (h *OAuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// verifyState compares the callback's state parameter with the cookie issued
// at login. Both must be present and equal byte for byte.
func verifyState(r *http.Request) error {
	state := r.URL.Query().Get("state")
	if state == "" {
		return fmt.Errorf("%w: missing state parameter", ErrStateMismatch)
	}
	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie.Value == "" {
		return fmt.Errorf("%w: missing state cookie", ErrStateMismatch)
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(cookie.Value)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
