package secondary

import (
	"context"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
)

// QueueSender defines the secondary port for appending a message to a
// named queue.
type QueueSender interface {
	// Send enqueues body on queue.
	Send(ctx context.Context, queue string, body []byte) error

	// Close releases any resources held by the sender.
	Close() error
}

// QueueReceiver defines the secondary port for consuming a named queue with
// at-least-once semantics.
type QueueReceiver interface {
	// Receive returns up to max messages; an empty slice means the queue is
	// currently empty.
	Receive(ctx context.Context, queue string, max int) ([]*entity.QueueMessage, error)

	// Complete removes a processed message.
	Complete(ctx context.Context, msg *entity.QueueMessage) error

	// Abandon returns a message for redelivery.
	Abandon(ctx context.Context, msg *entity.QueueMessage) error
}
