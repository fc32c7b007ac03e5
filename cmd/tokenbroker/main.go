package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ternary "github.com/julien040/go-ternary"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Suhaibinator/tokenbroker/pkg/auth"
	"github.com/Suhaibinator/tokenbroker/pkg/config"
	"github.com/Suhaibinator/tokenbroker/pkg/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "tokenbroker",
		Short:        "Authorization Code grant broker for browser clients",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment (ignored if missing)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() // Flushes buffer, if any

	logger.Info("Configuration loaded",
		zap.String("mode", cfg.Mode),
		zap.String("base_url", cfg.ActiveMode().BaseURL),
		zap.String("redirect_uri", cfg.ActiveMode().RedirectURI))

	registry := prometheus.NewRegistry()
	oauthHandler := auth.NewOAuthHandler(logger.Named("tokenbroker"), server.LogEnricher, cfg.OAuthConfig(), registry)
	if oauthHandler == nil {
		return fmt.Errorf("failed to create OAuth handler")
	}
	defer oauthHandler.Stop()

	router := server.NewRouter(oauthHandler, logger, server.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:       registry,
	})
	return server.Run(ctx, server.New(cfg.Addr(), router, cfg.ExchangeTimeout), logger)
}

// newLogger starts from the mode's zap preset and only replaces its level
// when LOG_LEVEL is set.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := ternary.If(cfg.IsProd(), zap.NewProductionConfig(), zap.NewDevelopmentConfig())
	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
