package http

import (
	"context"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// mockWebhookService implements primary.WebhookService for testing.
type mockWebhookService struct {
	acceptErr error
	calls     int
	last      *primary.WebhookRequest
}

func (m *mockWebhookService) Accept(_ context.Context, req *primary.WebhookRequest) (*entity.BarcodeRetrievalTask, error) {
	m.calls++
	m.last = req
	if m.acceptErr != nil {
		return nil, m.acceptErr
	}
	return &entity.BarcodeRetrievalTask{Institution: req.InstitutionCode, Barcode: "12345", Process: "item_webhook"}, nil
}

// mockHealthCheck is a test double for health checks.
type mockHealthCheck struct {
	name string
	err  error
}

// healthCheckerAdapter wraps mockHealthCheck to satisfy secondary.HealthChecker.
type healthCheckerAdapter struct {
	check mockHealthCheck
}

func (a healthCheckerAdapter) Name() string {
	return a.check.name
}

func (a healthCheckerAdapter) Check(_ context.Context) error {
	return a.check.err
}

// Compile-time interface assertion
var _ secondary.HealthChecker = healthCheckerAdapter{}

// toHealthCheckers converts a slice of adapters to a slice of the interface.
func toHealthCheckers(adapters []healthCheckerAdapter) []secondary.HealthChecker {
	if len(adapters) == 0 {
		return nil
	}
	result := make([]secondary.HealthChecker, len(adapters))
	for i, a := range adapters {
		result[i] = a
	}
	return result
}
