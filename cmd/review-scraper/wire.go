package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/cache"
	"github.com/maltedev/review-scraper/internal/config"
	"github.com/maltedev/review-scraper/internal/database"
	"github.com/maltedev/review-scraper/internal/events"
	"github.com/maltedev/review-scraper/internal/fetcher"
	"github.com/maltedev/review-scraper/internal/metrics"
	"github.com/maltedev/review-scraper/internal/pacing"
	"github.com/maltedev/review-scraper/internal/pool"
	"github.com/maltedev/review-scraper/internal/scraper"
	"github.com/redis/go-redis/v9"
)

// engine is the extraction stack shared by serve and fetch.
type engine struct {
	browser   *browser.Browser
	pool      *pool.Pool
	buffers   *cache.Buffers
	fetcher   *fetcher.Fetcher
	publisher *events.Publisher
}

func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, error) {
	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.Timeout
	browserOpts.WSEndpoint = cfg.Browser.WSEndpoint
	browserOpts.Locale = cfg.Browser.Locale
	browserOpts.TimezoneID = cfg.Browser.TimezoneID
	browserOpts.ProxyServer = cfg.Browser.Proxy

	b, err := browser.New(browserOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	sessions, err := pool.New(b.NewSession, pool.Options{
		Size:    cfg.Pool.Size,
		MaxIdle: cfg.Pool.MaxIdle,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create session pool: %w", err)
	}

	buffers, err := cache.New(cache.Options{
		TTL:      cfg.Buffer.TTL,
		Capacity: cfg.Buffer.Capacity,
		OnEvict: func(target string, size int) {
			metrics.BufferEvictions.Inc()
			logger.Debug("target buffer evicted", "target", target, "size", size)
		},
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create buffer cache: %w", err)
	}

	pacerOpts := pacing.DefaultOptions()
	pacerOpts.JitterLow = cfg.Pacing.JitterLow
	pacerOpts.JitterHigh = cfg.Pacing.JitterHigh
	pacer, err := pacing.New(pacerOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create pacer: %w", err)
	}

	e := &engine{
		browser: b,
		pool:    sessions,
		buffers: buffers,
	}

	fetchOpts := fetcher.Options{
		URLTemplate: cfg.Fetch.URLTemplate,
		StepDelay:   cfg.Fetch.StepDelay,
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			b.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		e.publisher = events.NewPublisher(client, cfg.Redis.Stream, logger)
		fetchOpts.Notifier = e.publisher
		logger.Info("publishing extraction events", "stream", cfg.Redis.Stream)
	}

	e.fetcher = fetcher.New(sessions, scraper.DefaultResolver(pacer), buffers, pacer, fetchOpts)
	return e, nil
}

// close drains the pool before stopping the browser the sessions live in.
func (e *engine) close(ctx context.Context) error {
	var errs []error

	if err := e.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("session pool shutdown: %w", err))
	}
	e.buffers.Purge()

	if e.publisher != nil {
		if err := e.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}

	if err := e.browser.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
