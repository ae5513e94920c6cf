package primary

import (
	"context"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
)

// WebhookRequest is the transport-independent view of an inbound webhook.
type WebhookRequest struct {
	// InstitutionCode comes from the institution query parameter.
	InstitutionCode string

	// Signature is the X-Exl-Signature header value.
	Signature string

	// Body is the raw, unparsed request body the signature covers.
	Body []byte

	RequestID string
}

// WebhookService defines the primary port for catalog webhook intake.
type WebhookService interface {
	// Accept authenticates the webhook, extracts the barcode and enqueues a
	// retrieval task. Returned errors wrap a domain sentinel describing which
	// step failed.
	Accept(ctx context.Context, req *WebhookRequest) (*entity.BarcodeRetrievalTask, error)
}
