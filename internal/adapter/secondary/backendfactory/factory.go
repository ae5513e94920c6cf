package backendfactory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/azurestorage"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/kafkaqueue"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/memstore"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/config"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// Queue is a queue backend usable for both stages.
type Queue interface {
	secondary.QueueSender
	secondary.QueueReceiver
}

// NewQueue builds the backend named by cfg.Storage.QueueBackend. The
// returned health checker is nil for the memory backend. tp traces the Azure
// gateway; nil uses the global provider.
func NewQueue(ctx context.Context, cfg *config.Config, tp trace.TracerProvider, logger *zap.Logger) (Queue, secondary.HealthChecker, error) {
	switch cfg.Storage.QueueBackend {
	case config.BackendAzure:
		q, err := azurestorage.NewQueue(cfg.Storage.ConnectionString, azurestorage.QueueOptions{
			Base64:            cfg.Storage.Base64Messages,
			VisibilityTimeout: cfg.Worker.VisibilityTimeout,
			TracerProvider:    tp,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := q.Ensure(ctx, cfg.Storage.RetrievalQueue, cfg.Storage.ValidationQueue); err != nil {
			logger.Warn("could not ensure queues exist", zap.Error(err))
		}
		return q, q, nil

	case config.BackendKafka:
		q := kafkaqueue.New(kafkaqueue.Options{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
		}, logger)
		return q, q, nil

	case config.BackendMemory:
		logger.Warn("using in-memory queues; messages do not survive restarts")
		return memstore.NewQueue(logger), nil, nil
	}

	return nil, nil, fmt.Errorf("unsupported queue backend %q", cfg.Storage.QueueBackend)
}

// NewBlobStore builds the backend named by cfg.Storage.BlobBackend.
func NewBlobStore(ctx context.Context, cfg *config.Config, tp trace.TracerProvider, logger *zap.Logger) (secondary.BlobStore, secondary.HealthChecker, error) {
	switch cfg.Storage.BlobBackend {
	case config.BackendAzure:
		b, err := azurestorage.NewBlobStore(cfg.Storage.ConnectionString, tp, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := b.Ensure(ctx, cfg.Storage.ValidationContainer); err != nil {
			logger.Warn("could not ensure blob container exists", zap.Error(err))
		}
		return b, b, nil

	case config.BackendMemory:
		logger.Warn("using in-memory blob store")
		return memstore.NewBlobStore(), nil, nil
	}

	return nil, nil, fmt.Errorf("unsupported blob backend %q", cfg.Storage.BlobBackend)
}
