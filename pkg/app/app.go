// Package app wires configuration, storage, cache and services into one unit
// shared by the server, the serverless entrypoint and the CLI.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/cache"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/logging"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const day = 24 * time.Hour

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Repo    ports.LinkRepository
	Cache   ports.Cache
	Links   *services.LinkService
	Sweeper *services.Sweeper

	closers []func() error
}

// NewLogger builds the process logger from cfg and reports config warnings through it.
func NewLogger(cfg *config.Config) zerolog.Logger {
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	for _, w := range cfg.Warnings {
		logger.Warn().Msg(w)
	}
	return logger
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	repo, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Repo: repo}
	a.closers = append(a.closers, repo.Close)

	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cache.NewRedisClient(cfg.RedisAddr))
		if err := redisCache.Ping(ctx); err != nil {
			// The breaker keeps requests on storage until Redis recovers.
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
		}
		a.Cache = redisCache
		a.closers = append(a.closers, redisCache.Close)
	} else {
		a.Cache = cache.NewMemoryCache(time.Minute)
	}

	a.Links = services.NewLinkService(repo, a.Cache, logger, services.LinkOptions{
		MaxAnonymousLinks: cfg.MaxAnonymousLinks,
		AnonymousLinkTTL:  time.Duration(cfg.AnonymousLinkExpireDays) * day,
		DefaultLinkTTL:    time.Duration(cfg.DefaultLinkExpireDays) * day,
	})
	a.Sweeper = services.NewSweeper(repo, a.Cache, logger, services.SweepOptions{
		UnusedAfter: time.Duration(cfg.UnusedLinkDays) * day,
	})

	return a, nil
}

func (a *App) Handler() http.Handler {
	return handler.NewRouter(a.Config, a.Links, a.Sweeper, a.Logger)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
