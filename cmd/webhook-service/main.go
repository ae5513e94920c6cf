package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/primary/worker"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/almaclient"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/sqlstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/config"
)

const appName = "alma-item-checks-webhook"

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancellation for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildContainer(ctx)
	if err != nil {
		return fmt.Errorf("building container: %w", err)
	}

	return c.Invoke(func(
		router http.Handler,
		w *worker.Worker,
		cfg *config.Config,
		logger *zap.Logger,
		store *sqlstore.Store,
		catalog *almaclient.Client,
		cb *cacheBackend,
		qb *queueBackend,
		tp *sdktrace.TracerProvider,
	) {
		defer func() {
			if err := closeAll(store, catalog, cb, qb, tp); err != nil {
				logger.Error("error releasing resources", zap.Error(err))
			}
			_ = logger.Sync()
		}()

		logger.Info("starting application",
			zap.String("app", appName),
			zap.String("version", version),
			zap.String("http_addr", cfg.HTTPAddr),
			zap.String("queue_backend", cfg.Storage.QueueBackend),
			zap.String("blob_backend", cfg.Storage.BlobBackend),
			zap.String("cache_type", cfg.Cache.Type),
		)

		workerCtx, workerCancel := context.WithCancel(ctx)
		defer workerCancel()

		errCh := make(chan error, 2)
		workerDone := make(chan struct{})
		go func() {
			defer close(workerDone)
			errCh <- w.Run(workerCtx)
		}()

		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			if srvErr := server.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", srvErr)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		case srvErr := <-errCh:
			if srvErr != nil && !errors.Is(srvErr, context.Canceled) {
				logger.Error("service error", zap.Error(srvErr))
			}
		}

		logger.Info("shutting down gracefully")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Stop intake first so nothing new lands on the queue.
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}

		cancel()
		workerCancel()

		select {
		case <-workerDone:
		case <-shutdownCtx.Done():
			logger.Warn("worker did not finish before shutdown deadline")
		}

		logger.Info("shutdown complete")
	})
}

// closeAll releases every long-lived client and reports all failures. The
// tracer provider goes last so spans from closing clients are flushed.
func closeAll(
	store *sqlstore.Store,
	catalog *almaclient.Client,
	cb *cacheBackend,
	qb *queueBackend,
	tp *sdktrace.TracerProvider,
) error {
	var errs *multierror.Error
	if err := qb.Queue.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing queue: %w", err))
	}
	if err := cb.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing cache: %w", err))
	}
	if err := catalog.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing catalog client: %w", err))
	}
	if err := store.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing database: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("shutting down tracer provider: %w", err))
	}
	return errs.ErrorOrNil()
}
