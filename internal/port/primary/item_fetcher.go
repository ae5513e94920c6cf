package primary

import (
	"context"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
)

// MessageHandler processes a single queue message. A nil error means the
// message is finished with and may be deleted; a non-nil error asks for
// redelivery.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *entity.QueueMessage) error
}

// ItemFetcher defines the primary port for the fetch-and-store stage.
type ItemFetcher interface {
	MessageHandler

	// ProcessBarcode re-fetches the item, stores it and forwards a validation
	// task. Only provisioning failures are returned as errors; every other
	// stop is reported through the outcome.
	ProcessBarcode(ctx context.Context, task *entity.BarcodeRetrievalTask) (entity.FetchOutcome, error)
}
