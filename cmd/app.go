package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jupark12/go-content-queue/config"
	"github.com/jupark12/go-content-queue/extract"
	"github.com/jupark12/go-content-queue/generate"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/jupark12/go-content-queue/metrics"
	"github.com/jupark12/go-content-queue/queue"
	"github.com/jupark12/go-content-queue/worker"
	"github.com/redis/go-redis/v9"
)

// app holds the collaborators shared by the serve and generate commands.
type app struct {
	metrics *metrics.Metrics
	store   queue.JobStore
	workers worker.Options
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{metrics: metrics.New()}

	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	completer, err := newCompleter(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.workers = worker.Options{
		Store: store,
		Pages: extract.NewPageExtractor(extract.PageConfig{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.Scraper.Timeout,
		}, log),
		Generator: generate.NewGenerator(completer,
			generate.Params(cfg.LLM.Article),
			generate.Params(cfg.LLM.Product),
			a.metrics, log),
		Metrics:    a.metrics,
		JobTimeout: cfg.Workers.JobTimeout,
	}

	if cfg.Browser.Enabled {
		browser := extract.NewPlaywrightBrowser(extract.PlaywrightConfig{
			Headless:          cfg.Browser.Headless,
			ExecutablePath:    cfg.Browser.ExecutablePath,
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			ElementTimeout:    cfg.Browser.ElementTimeout,
			Install:           cfg.Browser.Install,
		}, log)
		a.closers = append(a.closers, browser.Close)
		a.workers.Products = extract.NewProductExtractor(browser, extract.ProductConfig{
			ScreenshotDir: cfg.Browser.ScreenshotDir,
		}, log)
	} else {
		log.Warn("Browser automation disabled; product jobs will fail")
	}

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StoreConfig, log logger.Logger) (queue.JobStore, func() error, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		store := queue.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("Using PostgreSQL job store")
		return store, func() error { pool.Close(); return nil }, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
		}
		log.Info("Using Redis job store", logger.String("addr", cfg.RedisAddr))
		return queue.NewRedisStore(client, cfg.KeyPrefix), client.Close, nil

	default:
		log.Info("Using in-memory job store")
		return queue.NewMemoryStore(), func() error { return nil }, nil
	}
}

func newCompleter(cfg config.LLMConfig) (generate.Completer, error) {
	client := generate.ClientConfig{
		APIKey:     cfg.APIKey(),
		BaseURL:    cfg.BaseURL,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.RequestTimeout,
	}

	var (
		c   generate.Completer
		err error
	)
	switch cfg.Provider {
	case config.ProviderAnthropic:
		c, err = generate.NewAnthropicCompleter(client)
	default:
		c, err = generate.NewOpenAICompleter(client)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s completer: %w", cfg.Provider, err)
	}
	if cfg.RateLimit > 0 {
		return generate.NewRateLimitedCompleter(c, cfg.RateLimit, cfg.RateBurst), nil
	}
	return c, nil
}
