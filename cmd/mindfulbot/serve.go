package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mindfulbot/internal/config"
	tele "mindfulbot/internal/infra/adapters/telegram"
	"mindfulbot/internal/infra/api"
	"mindfulbot/internal/infra/logging"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat, its API and the optional Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(flags.configPath, flags.dev)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	secret, err := authSecret(cfg)
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		logger.Warn().Msg("auth.secret not set; using a generated secret, tokens will not survive a restart")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.start(ctx)

	srv := api.NewServer(a.chat, a.hub, api.NewAuthManager(secret, cfg.Auth.TokenTTL), a.tr, api.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        cfg.Metrics.Enabled,
	}, logger)

	errc := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr()).Msg("http listening")
		if err := srv.ListenAndServe(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	var bot *tele.Bot
	botDone := make(chan struct{})
	if cfg.Bot.Enabled() {
		bot, err = tele.NewBot(&cfg.Bot, a.chat, a.hub, a.tr, logger)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		go func() {
			defer close(botDone)
			if err := bot.StartPolling(ctx); err != nil {
				errc <- fmt.Errorf("telegram: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case runErr = <-errc:
		logger.Error().Err(runErr).Msg("component failed; shutting down")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if bot != nil {
		bot.StopPolling()
		select {
		case <-botDone:
		case <-shutdownCtx.Done():
		}
	}
	a.shutdown(shutdownCtx)
	logger.Info().Msg("bye")
	return runErr
}

// authSecret returns the configured signing secret. Dev mode falls back to
// a random per-process secret.
func authSecret(cfg *config.Config) (string, error) {
	if cfg.Auth.Secret != "" {
		return cfg.Auth.Secret, nil
	}
	if !cfg.Runtime.Dev {
		return "", errors.New("auth.secret is required (set MINDFULBOT_AUTH_SECRET or run with --dev)")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate auth secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
