package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Suhaibinator/tokenbroker/pkg/auth"
)

func newTestRouter(t *testing.T, origins []string) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	h := auth.NewOAuthHandler(logger, LogEnricher, &auth.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		BaseURL:      "http://client.test",
		RedirectURI:  "http://broker.test/callback",
	}, registry)
	require.NotNil(t, h)
	return NewRouter(h, logger, Options{AllowedOrigins: origins, Gatherer: registry})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, []string{"*"})

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{name: "login", method: http.MethodGet, path: "/login", expectedStatus: http.StatusFound},
		{name: "callback", method: http.MethodGet, path: "/callback", expectedStatus: http.StatusFound},
		{name: "refresh_bad_body", method: http.MethodPost, path: "/refresh", body: "{}", expectedStatus: http.StatusBadRequest},
		{name: "healthz", method: http.MethodGet, path: "/healthz", expectedStatus: http.StatusOK},
		{name: "login_wrong_method", method: http.MethodPost, path: "/login", expectedStatus: http.StatusMethodNotAllowed},
		{name: "callback_wrong_method", method: http.MethodPost, path: "/callback", expectedStatus: http.StatusMethodNotAllowed},
		{name: "refresh_wrong_method", method: http.MethodGet, path: "/refresh", expectedStatus: http.StatusMethodNotAllowed},
		{name: "unknown", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestRouter_CallbackWithoutStateRedirectsToClient(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=xyz", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://client.test/#error=state_mismatch", rec.Header().Get("Location"))
}

func TestRouter_RequestID(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestRouter_CORS(t *testing.T) {
	tests := []struct {
		name                string
		allowed             []string
		origin              string
		expectedAllow       string
		expectedCredentials string
	}{
		{name: "wildcard_allows_any_origin", allowed: []string{"*"}, origin: "https://app.example.com", expectedAllow: "*"},
		{name: "listed_origin", allowed: []string{"https://app.example.com/"}, origin: "https://app.example.com", expectedAllow: "https://app.example.com", expectedCredentials: "true"},
		{name: "listed_origin_beside_wildcard", allowed: []string{"*", "https://app.example.com"}, origin: "https://app.example.com", expectedAllow: "https://app.example.com", expectedCredentials: "true"},
		{name: "unlisted_origin", allowed: []string{"https://app.example.com"}, origin: "https://evil.example.com"},
		{name: "no_origin", allowed: []string{"*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.allowed)

			req := httptest.NewRequest(http.MethodOptions, "/refresh", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.expectedAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.expectedCredentials, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, nil)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tokenbroker_flow_total{flow="login",outcome="redirected"} 1`)
}

func TestLogEnricher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	ctx := context.WithValue(context.Background(), requestIDKey{}, "req-1")
	LogEnricher(ctx, logger).Info("with id")
	LogEnricher(context.Background(), logger).Info("without id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestNew_WriteTimeoutOutlastsExchange(t *testing.T) {
	tests := []struct {
		name            string
		exchangeTimeout time.Duration
		expected        time.Duration
	}{
		{name: "default_exchange", exchangeTimeout: 10 * time.Second, expected: 30 * time.Second},
		{name: "long_exchange", exchangeTimeout: 45 * time.Second, expected: 55 * time.Second},
		{name: "unset", expected: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(":0", http.NotFoundHandler(), tt.exchangeTimeout)
			assert.Equal(t, tt.expected, srv.WriteTimeout)
			assert.Greater(t, srv.WriteTimeout, tt.exchangeTimeout)
		})
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New("127.0.0.1:0", http.NotFoundHandler(), 10*time.Second)

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, zaptest.NewLogger(t)) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
