package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const maxRefreshBodySize = 64 << 10

// Error codes placed in the client redirect fragment or the refresh JSON body.
const (
	errorStateMismatch           = "state_mismatch"
	errorInvalidToken            = "invalid_token"
	errorInvalidRequest          = "invalid_request"
	errorProviderUnavailable     = "provider_unavailable"
	errorInvalidProviderResponse = "invalid_provider_response"
)

// Login starts the authorization flow: it issues a fresh state cookie and
// redirects the user agent to the provider's authorization endpoint.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logEnricher(ctx, h.logger).Named("login")

	state, err := GenerateState(StateLength)
	if err != nil {
		logger.Error("Failed to generate state", zap.Error(err))
		h.metrics.record(flowLogin, outcomeInternalError)
		http.Error(w, "Login could not be started", http.StatusInternalServerError)
		return
	}

	h.setStateCookie(w, state)
	authURL := h.provider.AuthURL(ctx, state)

	h.metrics.record(flowLogin, outcomeRedirected)
	logger.Debug("Redirecting to provider for login", zap.String("state", state))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles the provider's redirect. The state cookie is consumed on
// every path; the code is exchanged only when the state matched.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logEnricher(ctx, h.logger).Named("callback")

	stateErr := verifyState(r)
	h.clearStateCookie(w)
	if stateErr != nil {
		logger.Warn("Rejected callback", zap.Error(stateErr))
		h.metrics.record(flowCallback, outcomeStateMismatch)
		h.redirectToClient(w, r, url.Values{"error": {errorStateMismatch}})
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		logger.Warn("Provider returned an authorization error", zap.String("error", providerErr))
		h.metrics.record(flowCallback, outcomeExchangeFailed)
		h.redirectToClient(w, r, url.Values{"error": {errorInvalidToken}})
		return
	}
	code := query.Get("code")
	if code == "" {
		logger.Warn("Callback missing authorization code")
		h.metrics.record(flowCallback, outcomeExchangeFailed)
		h.redirectToClient(w, r, url.Values{"error": {errorInvalidToken}})
		return
	}

	tokens, err := h.provider.Exchange(ctx, code)
	if err != nil {
		logger.Error("Failed to exchange code for token", zap.Error(err))
		h.metrics.record(flowCallback, outcomeExchangeFailed)
		h.redirectToClient(w, r, url.Values{"error": {errorInvalidToken}})
		return
	}

	h.metrics.record(flowCallback, outcomeExchanged)
	logger.Info("Authorization code exchanged")
	h.redirectToClient(w, r, url.Values{
		"access_token":  {tokens.AccessToken},
		"refresh_token": {tokens.RefreshToken},
	})
}

// Refresh exchanges a refresh token sent by the client application for a new
// access token and relays the provider's answer.
func (h *OAuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logEnricher(ctx, h.logger).Named("refresh")

	refreshToken, err := decodeRefreshRequest(w, r)
	if err != nil {
		logger.Warn("Rejected refresh request", zap.Error(err))
		h.metrics.record(flowRefresh, outcomeBadRequest)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorInvalidRequest})
		return
	}

	resp, err := h.provider.Refresh(ctx, refreshToken)
	if err != nil {
		logger.Error("Token endpoint unavailable", zap.Error(err))
		h.metrics.record(flowRefresh, outcomeProviderUnavailable)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: errorProviderUnavailable})
		return
	}

	if resp.StatusCode == http.StatusOK {
		h.metrics.record(flowRefresh, outcomeRefreshed)
		logger.Info("Access token refreshed")
	} else {
		h.metrics.record(flowRefresh, outcomeRefreshRejected)
		logger.Warn("Provider rejected refresh",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", resp.Body))
	}
	writeProviderResponse(w, resp)
}

// redirectToClient sends the user agent to the client application root with
// values encoded in the URL fragment.
func (h *OAuthHandler) redirectToClient(w http.ResponseWriter, r *http.Request, values url.Values) {
	target := strings.TrimRight(h.config.BaseURL, "/") + "/#" + values.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

type refreshEnvelope struct {
	Data string `json:"data"`
}

type refreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// decodeRefreshRequest buffers the request body and decodes it in two stages.
// The client wraps the JSON payload in a string field:
//
//	{"data": "{\"refresh_token\":\"...\"}"}
func decodeRefreshRequest(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRefreshBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read body: %w", ErrInvalidRefreshRequest, err)
	}

	var envelope refreshEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: malformed body: %w", ErrInvalidRefreshRequest, err)
	}
	if envelope.Data == "" {
		return "", fmt.Errorf("%w: missing data field", ErrInvalidRefreshRequest)
	}

	var payload refreshPayload
	if err := json.Unmarshal([]byte(envelope.Data), &payload); err != nil {
		return "", fmt.Errorf("%w: malformed data field: %w", ErrInvalidRefreshRequest, err)
	}
	if payload.RefreshToken == "" {
		return "", fmt.Errorf("%w: missing refresh_token", ErrInvalidRefreshRequest)
	}
	return payload.RefreshToken, nil
}
