package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pario-ai/ragcache/pkg/budget"
	"github.com/pario-ai/ragcache/pkg/cache"
	"github.com/pario-ai/ragcache/pkg/cache/memory"
	cachesqlite "github.com/pario-ai/ragcache/pkg/cache/sqlite"
	"github.com/pario-ai/ragcache/pkg/config"
	"github.com/pario-ai/ragcache/pkg/index"
	"github.com/pario-ai/ragcache/pkg/rag"
	"github.com/pario-ai/ragcache/pkg/tracker"
)

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "ragcache",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func openStore(cfg *config.Config) (*cachesqlite.Cache, error) {
	return cachesqlite.New(cfg.DBPath,
		cachesqlite.WithTTL(cfg.Cache.TTL),
		cachesqlite.WithCompression(cfg.Cache.Compress),
	)
}

// app is everything one process needs to answer queries.
type app struct {
	facade  *cache.Facade
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp constructs the producer pipeline and both cache tiers once.
func buildApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	ix, err := index.Open(ctx, cfg.Index)
	if err != nil {
		return fail(fmt.Errorf("open index: %w", err))
	}
	a.closers = append(a.closers, ix.Close)
	if n, err := ix.Count(ctx); err == nil && n == 0 {
		logger.Warn("vector index is empty, every query will fail", "backend", cfg.Index.Backend)
	}

	prompt, err := rag.LoadPrompt(cfg.Producer.PromptTemplate)
	if err != nil {
		return fail(err)
	}

	opts := []rag.Option{
		rag.WithLogger(logger),
		rag.WithRateLimit(cfg.Producer.RateLimit, cfg.Producer.Burst),
	}
	if cfg.Usage.Enabled {
		tr, err := tracker.New(cfg.DBPath)
		if err != nil {
			return fail(fmt.Errorf("init tracker: %w", err))
		}
		a.closers = append(a.closers, tr.Close)
		opts = append(opts, rag.WithUsage(tr))
		if cfg.Usage.Budget.MaxTokens > 0 {
			opts = append(opts, rag.WithBudget(budget.New(cfg.Usage.Budget, tr)))
			logger.Info("token budget enabled", "max_tokens", cfg.Usage.Budget.MaxTokens, "period", cfg.Usage.Budget.Period)
		}
	}

	client := rag.NewClient(cfg.Producer)
	pipeline := rag.NewPipeline(client, ix, client, prompt, cfg.Producer.TopK, opts...)

	store, err := openStore(cfg)
	if err != nil {
		return fail(fmt.Errorf("init cache: %w", err))
	}
	a.closers = append(a.closers, store.Close)

	mem, err := memory.New(cfg.Cache.MemorySize)
	if err != nil {
		return fail(fmt.Errorf("init memory cache: %w", err))
	}

	a.facade = cache.New(mem, store, pipeline, cache.Options{
		Timeout: cfg.Producer.Timeout,
		Logger:  logger,
	})
	return a, nil
}
