package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/signature"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// WebhookOptions configures the intake stage.
type WebhookOptions struct {
	// Secret is the shared HMAC key.
	Secret string

	// RetrievalQueue is Queue A.
	RetrievalQueue string

	// SkipSignature disables verification. Only set in development.
	SkipSignature bool
}

// WebhookService authenticates catalog webhooks and turns them into barcode
// retrieval tasks on Queue A. The payload is never trusted beyond the
// barcode: the fetch stage re-reads the item from the catalog.
type WebhookService struct {
	directory secondary.InstitutionDirectory
	sender    secondary.QueueSender
	opts      WebhookOptions
	logger    *zap.Logger
}

var _ primary.WebhookService = (*WebhookService)(nil)

// NewWebhookService creates a WebhookService with its dependencies injected.
func NewWebhookService(
	directory secondary.InstitutionDirectory,
	sender secondary.QueueSender,
	opts WebhookOptions,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		directory: directory,
		sender:    sender,
		opts:      opts,
		logger:    logger.Named("webhook-service"),
	}
}

// Accept runs signature verification, institution resolution, payload
// parsing and enqueueing, stopping at the first failure.
//
// The signature is checked against the raw body before anything is read
// from the request, and the institution comes only from the query parameter
// resolved through the directory. The payload's own institution field is
// never read.
func (s *WebhookService) Accept(ctx context.Context, req *primary.WebhookRequest) (*entity.BarcodeRetrievalTask, error) {
	const op = "webhook.Accept"

	logger := s.logger.With(
		zap.String("institution", req.InstitutionCode),
		zap.String("request_id", req.RequestID),
	)

	if err := s.verify(req, logger); err != nil {
		return nil, domain.E(domain.KindInfrastructure, op, err)
	}

	code := strings.TrimSpace(req.InstitutionCode)
	if code == "" {
		logger.Error("missing institution parameter")
		return nil, domain.E(domain.KindValidation, op, domain.ErrMissingInstitution)
	}

	institution, err := s.directory.Lookup(ctx, code)
	if err != nil {
		logger.Error("unable to find institution", zap.Error(err))
		if errors.Is(err, domain.ErrInstitutionNotFound) {
			return nil, domain.E(domain.KindInfrastructure, op, err)
		}
		return nil, domain.E(domain.KindInfrastructure, op, fmt.Errorf("%w: %v", domain.ErrInstitutionNotFound, err))
	}

	// Well-formed JSON of the wrong shape falls through to the barcode
	// check; whatever did decode is still used.
	var event entity.WebhookEvent
	if err := json.Unmarshal(req.Body, &event); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			logger.Error("invalid JSON in request body", zap.Error(err))
			return nil, domain.E(domain.KindValidation, op, fmt.Errorf("%w: %v", domain.ErrInvalidJSON, err))
		}
		logger.Warn("unexpected webhook payload shape", zap.Error(err))
	}

	barcode := event.Barcode()
	if barcode == "" {
		logger.Error("barcode not found in webhook payload",
			zap.String("field", "item_data.barcode"),
			zap.String("event", event.EventType()),
		)
		return nil, domain.E(domain.KindValidation, op, domain.ErrMissingBarcode)
	}

	task := &entity.BarcodeRetrievalTask{
		Institution: institution.Code,
		Barcode:     barcode,
		Process:     domain.ProcessItemWebhook,
	}

	body, err := json.Marshal(task)
	if err != nil {
		return nil, domain.E(domain.KindValidation, op, fmt.Errorf("%w: encoding task: %v", domain.ErrEnqueueFailed, err))
	}

	if err := s.sender.Send(ctx, s.opts.RetrievalQueue, body); err != nil {
		logger.Error("failed to send message to queue",
			zap.String("queue", s.opts.RetrievalQueue),
			zap.String("barcode", barcode),
			zap.Error(err),
		)
		return nil, domain.E(domain.KindInfrastructure, op, fmt.Errorf("%w: %v", domain.ErrEnqueueFailed, err))
	}

	logger.Info("barcode retrieval task enqueued",
		zap.String("barcode", barcode),
		zap.String("queue", s.opts.RetrievalQueue),
		zap.String("event", event.EventType()),
	)

	return task, nil
}

func (s *WebhookService) verify(req *primary.WebhookRequest, logger *zap.Logger) error {
	if s.opts.SkipSignature {
		logger.Warn("signature verification bypassed in development environment")
		return nil
	}

	if req.Signature == "" {
		logger.Warn("X-Exl-Signature header is missing")
		return domain.ErrInvalidSignature
	}

	if s.opts.Secret == "" {
		logger.Error("webhook secret is not provided for validation")
		return domain.ErrInvalidSignature
	}

	if !signature.Verify(req.Body, s.opts.Secret, req.Signature) {
		logger.Error("invalid webhook signature received")
		return domain.ErrInvalidSignature
	}

	return nil
}
