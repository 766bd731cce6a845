package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"mindfulbot/internal/config"
	"mindfulbot/internal/domain/ports/repository"
	"mindfulbot/internal/infra/events"
	"mindfulbot/internal/infra/i18n"
	"mindfulbot/internal/infra/metrics"
	"mindfulbot/internal/infra/ratelimit"
	red "mindfulbot/internal/infra/redis"
	"mindfulbot/internal/infra/scheduler"
	"mindfulbot/internal/infra/security"
	"mindfulbot/internal/infra/storage/memory"
	"mindfulbot/internal/responder"
	"mindfulbot/internal/usecase"
)

// app holds the components shared by every front-end.
type app struct {
	cfg     *config.Config
	log     *zerolog.Logger
	tr      *i18n.Translator
	hub     *events.Hub
	chat    usecase.ChatUseCase
	delayer *scheduler.Delayer
	janitor *scheduler.Scheduler // nil when conversations live in Redis

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	tr, err := i18n.Default(cfg.Chat.Locale)
	if err != nil {
		return nil, fmt.Errorf("i18n: %w", err)
	}
	a.tr = tr

	table := responder.DefaultTable()
	if cfg.Chat.ResponsesFile != "" {
		b, err := os.ReadFile(cfg.Chat.ResponsesFile)
		if err != nil {
			return nil, fmt.Errorf("read responses: %w", err)
		}
		if table, err = responder.LoadTable(b); err != nil {
			return nil, fmt.Errorf("responses %s: %w", cfg.Chat.ResponsesFile, err)
		}
		logger.Info().Str("file", cfg.Chat.ResponsesFile).Int("categories", len(table.Categories)).Msg("response table loaded")
	}
	selector := responder.NewSelector(table)

	var (
		repo    repository.ConversationRepository
		limiter usecase.Limiter
		locker  usecase.Locker
	)
	if cfg.Redis.Enabled {
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		var repoOpts []red.RepoOption
		if cfg.Redis.EncryptionKey != "" {
			sealer, err := security.NewSealer(cfg.Redis.EncryptionKey)
			if err != nil {
				return nil, fmt.Errorf("redis encryption: %w", err)
			}
			repoOpts = append(repoOpts, red.WithCipher(sealer))
		} else {
			logger.Warn().Msg("redis.encryption_key not set; conversations are stored in plain text")
		}
		repo = red.NewConversationRepo(client, cfg.Redis.KeyPrefix, cfg.Chat.SessionTTL, repoOpts...)
		if cfg.Chat.RateLimit > 0 {
			limiter = red.NewRateLimiter(client, cfg.Redis.KeyPrefix, cfg.Chat.RateLimit, cfg.Chat.RateWindow)
		}
		locker = red.NewLocker(client, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL, cfg.Redis.LockWait)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("conversations stored in redis")
	} else {
		mem := memory.NewConversationRepo()
		repo = mem
		if cfg.Chat.RateLimit > 0 {
			limiter = ratelimit.NewLocal(cfg.Chat.RateLimit, cfg.Chat.RateWindow)
		}
		ttl := cfg.Chat.SessionTTL
		a.janitor = scheduler.NewScheduler(cfg.Chat.SweepInterval, scheduler.SweepFunc(func(ctx context.Context) (int, error) {
			n, err := mem.DeleteIdle(ctx, time.Now().Add(-ttl))
			metrics.AddSessionsExpired(n)
			return n, err
		}), logger)
	}

	a.hub = events.NewHub(0, logger)
	a.delayer = scheduler.NewDelayer(cfg.Chat.ReplyDelayMin, cfg.Chat.ReplyDelayMax)

	opts := []usecase.ChatOption{usecase.WithDevMode(cfg.Runtime.Dev)}
	if limiter != nil {
		opts = append(opts, usecase.WithLimiter(limiter))
	}
	if locker != nil {
		opts = append(opts, usecase.WithLocker(locker))
	}
	a.chat = usecase.NewChatUseCase(repo, selector, a.delayer, a.hub, tr.T(i18n.SeedGreeting), logger, opts...)
	return a, nil
}

// start launches background loops tied to ctx.
func (a *app) start(ctx context.Context) {
	if a.janitor != nil {
		a.janitor.Start(ctx)
	}
}

// shutdown stops background loops and lets pending replies land.
func (a *app) shutdown(ctx context.Context) {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if err := a.delayer.Wait(ctx); err != nil {
		a.log.Warn().Err(err).Msg("pending replies not drained")
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn().Err(err).Msg("close")
		}
	}
}
