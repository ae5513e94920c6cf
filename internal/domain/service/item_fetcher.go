package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/retry"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/valueobject"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// FetcherOptions configures the fetch-and-store stage.
type FetcherOptions struct {
	// Container receives the item snapshots.
	Container string

	// ValidationQueue is Queue B.
	ValidationQueue string

	// Retry bounds the catalog fetch. Zero value means retry.Default().
	Retry retry.Policy
}

// ItemFetcherService consumes barcode retrieval tasks, re-reads the item
// from the catalog, stores the snapshot and forwards an item validation task.
type ItemFetcherService struct {
	directory secondary.InstitutionDirectory
	catalog   secondary.CatalogClient
	blobs     secondary.BlobStore
	sender    secondary.QueueSender
	opts      FetcherOptions
	logger    *zap.Logger
}

var _ primary.ItemFetcher = (*ItemFetcherService)(nil)

// NewItemFetcherService creates an ItemFetcherService with its dependencies
// injected.
func NewItemFetcherService(
	directory secondary.InstitutionDirectory,
	catalog secondary.CatalogClient,
	blobs secondary.BlobStore,
	sender secondary.QueueSender,
	opts FetcherOptions,
	logger *zap.Logger,
) *ItemFetcherService {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default()
	}
	return &ItemFetcherService{
		directory: directory,
		catalog:   catalog,
		blobs:     blobs,
		sender:    sender,
		opts:      opts,
		logger:    logger.Named("item-fetcher"),
	}
}

// HandleMessage decodes a Queue A message and processes it. Undecodable
// messages are dropped.
func (s *ItemFetcherService) HandleMessage(ctx context.Context, msg *entity.QueueMessage) error {
	var task entity.BarcodeRetrievalTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		s.logger.Error("undecodable barcode retrieval message, dropping",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}

	_, err := s.ProcessBarcode(ctx, &task)
	return err
}

// ProcessBarcode runs the fetch stage for one task.
func (s *ItemFetcherService) ProcessBarcode(ctx context.Context, task *entity.BarcodeRetrievalTask) (entity.FetchOutcome, error) {
	const op = "fetcher.ProcessBarcode"

	logger := s.logger.With(
		zap.String("institution", task.Institution),
		zap.String("barcode", task.Barcode),
		zap.String("process", task.Process),
	)

	if err := task.Validate(); err != nil {
		logger.Error("missing institution or barcode, dropping message", zap.Error(err))
		return entity.OutcomeDropped, nil
	}

	institution, err := s.directory.Lookup(ctx, task.Institution)
	if err != nil {
		if errors.Is(err, domain.ErrInstitutionNotFound) {
			logger.Error("no institution found", zap.Error(err))
		} else {
			logger.Error("error getting institution", zap.Error(err))
		}
		return entity.OutcomeFailed, domain.E(domain.KindInfrastructure, op, err)
	}

	if !institution.HasAPIKey() {
		logger.Error("institution has no api key")
		return entity.OutcomeFailed, domain.E(domain.KindInfrastructure, op,
			fmt.Errorf("%w: %s", domain.ErrMissingAPIKey, institution.Code))
	}

	item := s.fetchItem(ctx, institution, task.Barcode, logger)
	if item == nil {
		return entity.OutcomeSkipped, nil
	}

	name, err := valueobject.NewBlobName(task.Barcode, institution.Code)
	if err != nil {
		logger.Error("cannot build blob name", zap.Error(err))
		return entity.OutcomeDropped, nil
	}
	logger = logger.With(zap.String("blob_name", name.String()))

	if err := s.blobs.Upload(ctx, s.opts.Container, name.String(), item); err != nil {
		logger.Error("error uploading item data to blob",
			zap.String("container", s.opts.Container),
			zap.Error(domain.E(domain.KindInfrastructure, op, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err))),
		)
		return entity.OutcomeUploadFailed, nil
	}

	next := entity.ItemValidationTask{
		Institution: institution.Code,
		BlobName:    name.String(),
		Process:     task.Process,
	}
	body, err := json.Marshal(next)
	if err != nil {
		logger.Error("error encoding item validation task", zap.Error(err))
		return entity.OutcomePartialFailure, nil
	}

	if err := s.sender.Send(ctx, s.opts.ValidationQueue, body); err != nil {
		logger.Error("error sending message to queue for blob",
			zap.String("queue", s.opts.ValidationQueue),
			zap.Error(err),
		)
		return entity.OutcomePartialFailure, nil
	}

	logger.Info("item stored and validation task sent",
		zap.String("queue", s.opts.ValidationQueue),
		zap.Int("size", len(item)),
	)

	return entity.OutcomeForwarded, nil
}

// fetchItem re-reads the item under the retry policy. It returns nil when
// the catalog has no active item, reports a terminal error, or every attempt
// fails transiently.
func (s *ItemFetcherService) fetchItem(
	ctx context.Context,
	institution *entity.Institution,
	barcode string,
	logger *zap.Logger,
) json.RawMessage {
	// In-flight fetches run to completion or exhaustion; the HTTP client
	// timeout bounds each attempt.
	ctx = context.WithoutCancel(ctx)

	policy := s.opts.Retry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("network error getting item, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	var item json.RawMessage
	attempts, err := policy.Do(func(int) error {
		got, err := s.catalog.GetItemByBarcode(ctx, institution.APIKey, barcode)
		if err != nil {
			return err
		}
		item = got
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrRetriesExhausted):
		logger.Error("all retry attempts failed for barcode, skipping processing",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return nil
	case err != nil:
		logger.Warn("error retrieving item from catalog, skipping processing",
			zap.String("kind", domain.KindOf(err).String()),
			zap.Error(err),
		)
		return nil
	case len(item) == 0:
		logger.Info("item not active in catalog, skipping further processing")
		return nil
	}

	return item
}
