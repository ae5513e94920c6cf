package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

type queuedMessage struct {
	id       string
	body     []byte
	dequeues int64
	inFlight bool
}

// Queue is an in-process queue for local runs and tests. Received messages
// stay invisible until completed or abandoned.
type Queue struct {
	mu     sync.Mutex
	queues map[string][]*queuedMessage
	closed bool
	logger *zap.Logger
}

var (
	_ secondary.QueueSender   = (*Queue)(nil)
	_ secondary.QueueReceiver = (*Queue)(nil)
)

// NewQueue creates an empty in-memory queue set.
func NewQueue(logger *zap.Logger) *Queue {
	return &Queue{
		queues: make(map[string][]*queuedMessage),
		logger: logger.Named("memory-queue"),
	}
}

// Send appends body to queue.
func (q *Queue) Send(_ context.Context, queue string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue %q: sender closed", queue)
	}

	msg := &queuedMessage{id: uuid.NewString(), body: append([]byte(nil), body...)}
	q.queues[queue] = append(q.queues[queue], msg)

	q.logger.Debug("message enqueued", zap.String("queue", queue), zap.String("message_id", msg.id))
	return nil
}

// Receive returns up to max visible messages in FIFO order.
func (q *Queue) Receive(ctx context.Context, queue string, max int) ([]*entity.QueueMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*entity.QueueMessage
	for _, m := range q.queues[queue] {
		if len(out) >= max {
			break
		}
		if m.inFlight {
			continue
		}
		m.inFlight = true
		m.dequeues++
		out = append(out, &entity.QueueMessage{
			ID:           m.id,
			Queue:        queue,
			Body:         append([]byte(nil), m.body...),
			DequeueCount: m.dequeues,
		})
	}
	return out, nil
}

// Complete deletes msg.
func (q *Queue) Complete(_ context.Context, msg *entity.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list := q.queues[msg.Queue]
	for i, m := range list {
		if m.id == msg.ID {
			q.queues[msg.Queue] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("queue %q: message %s not found", msg.Queue, msg.ID)
}

// Abandon makes msg visible again.
func (q *Queue) Abandon(_ context.Context, msg *entity.QueueMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range q.queues[msg.Queue] {
		if m.id == msg.ID {
			m.inFlight = false
			return nil
		}
	}
	return fmt.Errorf("queue %q: message %s not found", msg.Queue, msg.ID)
}

// Len returns the number of messages held for queue, in flight or not.
func (q *Queue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[queue])
}

// Peek returns copies of the bodies held for queue.
func (q *Queue) Peek(queue string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([][]byte, 0, len(q.queues[queue]))
	for _, m := range q.queues[queue] {
		out = append(out, append([]byte(nil), m.body...))
	}
	return out
}

// Close rejects further sends.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
