// Package server exposes the OAuth flows over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Suhaibinator/tokenbroker/pkg/auth"
)

const (
	shutdownTimeout = 15 * time.Second

	minWriteTimeout    = 30 * time.Second
	writeTimeoutMargin = 10 * time.Second
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// Gatherer backs /metrics; the endpoint is omitted when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the login, callback and refresh handlers behind the
// request id, logging, CORS and panic recovery middleware.
func NewRouter(h *auth.OAuthHandler, logger *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(opts.AllowedOrigins))

	r.Get("/login", h.Login)
	r.Get("/callback", h.Callback)
	r.Post("/refresh", h.Refresh)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// New returns an http.Server with the timeouts used in production. The write
// deadline always outlasts exchangeTimeout so a callback whose token exchange
// runs to its own deadline can still deliver its redirect.
func New(addr string, handler http.Handler, exchangeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: max(minWriteTimeout, exchangeTimeout+writeTimeoutMargin),
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting token broker", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down token broker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
