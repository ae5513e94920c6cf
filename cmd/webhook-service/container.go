package main

import (
	"context"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/dig"
	"go.uber.org/zap"

	httphandler "github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/primary/http"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/primary/worker"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/almaclient"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/backendfactory"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/cachedir"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/memstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/redisstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/sqlstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/telemetry"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/config"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/service"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// cacheBackend is the optional institution cache. Cache is nil when
// CACHE_TYPE=none.
type cacheBackend struct {
	Cache  secondary.Cache
	Health secondary.HealthChecker
	Close  func() error
}

// queueBackend and blobBackend carry a gateway with its health check,
// which is nil for in-memory backends.
type queueBackend struct {
	Queue  backendfactory.Queue
	Health secondary.HealthChecker
}

type blobBackend struct {
	Store  secondary.BlobStore
	Health secondary.HealthChecker
}

func buildContainer(ctx context.Context) (*dig.Container, error) {
	c := dig.New()

	// --- Configuration ---
	if err := c.Provide(config.New); err != nil {
		return nil, err
	}

	// --- Logger ---
	if err := c.Provide(newLogger); err != nil {
		return nil, err
	}

	// --- Secondary Adapters (infrastructure) ---

	// Tracer provider, registered globally
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
		return telemetry.NewTracerProvider(ctx, &cfg.Telemetry, logger)
	}); err != nil {
		return nil, err
	}

	// Institution database
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) (*sqlstore.Store, error) {
		driver, dsn, err := cfg.Database.DSN()
		if err != nil {
			return nil, err
		}
		store, err := sqlstore.Open(ctx, driver, dsn, cfg.Database.MaxOpenConns, logger)
		if err != nil {
			return nil, err
		}
		if driver == "sqlite" {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		return store, nil
	}); err != nil {
		return nil, err
	}

	// Institution cache
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) (*cacheBackend, error) {
		switch cfg.Cache.Type {
		case config.BackendRedis:
			client, err := redisstore.NewClient(ctx, &cfg.Cache, logger)
			if err != nil {
				return nil, err
			}
			return &cacheBackend{
				Cache:  redisstore.NewCache(client, logger),
				Health: redisstore.NewHealthCheck(client),
				Close:  client.Close,
			}, nil
		case config.BackendMemory:
			cache := memstore.NewCache(cfg.Cache.TTL)
			return &cacheBackend{
				Cache: cache,
				Close: func() error { cache.Stop(); return nil },
			}, nil
		}
		return &cacheBackend{Close: func() error { return nil }}, nil
	}); err != nil {
		return nil, err
	}

	// Institution directory (implements secondary.InstitutionDirectory)
	if err := c.Provide(func(store *sqlstore.Store, cb *cacheBackend, cfg *config.Config, logger *zap.Logger) secondary.InstitutionDirectory {
		var dir secondary.InstitutionDirectory = sqlstore.NewDirectory(store, logger)
		if cb.Cache != nil {
			dir = cachedir.New(dir, cb.Cache, cfg.Cache.TTL, logger)
		}
		return dir
	}); err != nil {
		return nil, err
	}

	// Catalog API client (implements secondary.CatalogClient)
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) (*almaclient.Client, error) {
		return almaclient.NewClient(cfg.Catalog.Region, cfg.Catalog.BaseURL, cfg.Catalog.Timeout.Duration(), logger)
	}); err != nil {
		return nil, err
	}

	// Queue and blob gateways
	if err := c.Provide(func(cfg *config.Config, tp *sdktrace.TracerProvider, logger *zap.Logger) (*queueBackend, error) {
		q, health, err := backendfactory.NewQueue(ctx, cfg, tp, logger)
		if err != nil {
			return nil, err
		}
		return &queueBackend{Queue: q, Health: health}, nil
	}); err != nil {
		return nil, err
	}

	if err := c.Provide(func(cfg *config.Config, tp *sdktrace.TracerProvider, logger *zap.Logger) (*blobBackend, error) {
		b, health, err := backendfactory.NewBlobStore(ctx, cfg, tp, logger)
		if err != nil {
			return nil, err
		}
		return &blobBackend{Store: b, Health: health}, nil
	}); err != nil {
		return nil, err
	}

	// Collect all health checks; nil entries are skipped by the handler.
	if err := c.Provide(func(store *sqlstore.Store, cb *cacheBackend, qb *queueBackend, bb *blobBackend) []secondary.HealthChecker {
		return []secondary.HealthChecker{store, qb.Health, bb.Health, cb.Health}
	}); err != nil {
		return nil, err
	}

	// --- Domain Services ---

	if err := c.Provide(func(dir secondary.InstitutionDirectory, qb *queueBackend, cfg *config.Config, logger *zap.Logger) primary.WebhookService {
		if cfg.IsDevelopment() {
			logger.Warn("development environment: webhook signature verification is disabled")
		}
		return service.NewWebhookService(dir, qb.Queue, service.WebhookOptions{
			Secret:         cfg.Webhook.Secret,
			RetrievalQueue: cfg.Storage.RetrievalQueue,
			SkipSignature:  cfg.IsDevelopment(),
		}, logger)
	}); err != nil {
		return nil, err
	}

	if err := c.Provide(func(
		dir secondary.InstitutionDirectory,
		catalog *almaclient.Client,
		bb *blobBackend,
		qb *queueBackend,
		cfg *config.Config,
		logger *zap.Logger,
	) primary.ItemFetcher {
		return service.NewItemFetcherService(dir, catalog, bb.Store, qb.Queue, service.FetcherOptions{
			Container:       cfg.Storage.ValidationContainer,
			ValidationQueue: cfg.Storage.ValidationQueue,
		}, logger)
	}); err != nil {
		return nil, err
	}

	// --- Primary Adapters ---

	// HTTP router
	if err := c.Provide(func(svc primary.WebhookService, checks []secondary.HealthChecker, cfg *config.Config, logger *zap.Logger) http.Handler {
		return httphandler.NewRouter(svc, checks, cfg.Webhook.MaxBodyBytes, logger)
	}); err != nil {
		return nil, err
	}

	// Worker on the barcode retrieval queue
	if err := c.Provide(func(fetcher primary.ItemFetcher, qb *queueBackend, cfg *config.Config, logger *zap.Logger) *worker.Worker {
		return worker.NewWorker(fetcher, qb.Queue, qb.Queue, worker.Options{
			Queue:           cfg.Storage.RetrievalQueue,
			PollInterval:    cfg.Worker.PollInterval,
			BatchSize:       cfg.Worker.BatchSize,
			Concurrency:     cfg.Worker.Concurrency,
			MaxDequeueCount: cfg.Worker.MaxDequeueCount,
		}, logger)
	}); err != nil {
		return nil, err
	}

	return c, nil
}
