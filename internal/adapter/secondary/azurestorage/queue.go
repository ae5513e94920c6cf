package azurestorage

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// QueueOptions configures the queue gateway.
type QueueOptions struct {
	// Base64 encodes outgoing messages, matching the Functions host default.
	Base64 bool

	// VisibilityTimeout hides received messages until completed or the
	// timeout lapses.
	VisibilityTimeout time.Duration

	// TracerProvider records gateway spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider
}

type receipt struct {
	popReceipt string
	text       string
}

// Queue implements secondary.QueueSender and secondary.QueueReceiver on
// Azure Storage queues.
type Queue struct {
	service *azqueue.ServiceClient
	opts    QueueOptions
	tracer  trace.Tracer
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[string]*azqueue.QueueClient
}

var (
	_ secondary.QueueSender   = (*Queue)(nil)
	_ secondary.QueueReceiver = (*Queue)(nil)
)

// NewQueue creates a queue gateway from a storage connection string.
func NewQueue(connectionString string, opts QueueOptions, logger *zap.Logger) (*Queue, error) {
	service, err := azqueue.NewServiceClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Queue client: %w", err)
	}

	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 30 * time.Second
	}

	return &Queue{
		service: service,
		opts:    opts,
		tracer:  tracerFrom(opts.TracerProvider),
		logger:  logger.Named("azure-queue"),
		clients: make(map[string]*azqueue.QueueClient),
	}, nil
}

const instrumentationName = "github.com/WRLC/alma-item-checks-webhook-service/internal/adapter/secondary/azurestorage"

func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

func (q *Queue) client(name string) *azqueue.QueueClient {
	q.mu.Lock()
	defer q.mu.Unlock()

	if c, ok := q.clients[name]; ok {
		return c
	}
	c := q.service.NewQueueClient(name)
	q.clients[name] = c
	return c
}

// Ensure creates the named queues when they do not exist.
func (q *Queue) Ensure(ctx context.Context, names ...string) error {
	for _, name := range names {
		_, err := q.client(name).Create(ctx, nil)
		if err != nil && !queueerror.HasCode(err, queueerror.QueueAlreadyExists) {
			return fmt.Errorf("creating queue %q: %w", name, err)
		}
	}
	return nil
}

// Send enqueues body on queue.
func (q *Queue) Send(ctx context.Context, queue string, body []byte) error {
	ctx, span := q.tracer.Start(ctx, "azurestorage.Queue.Send",
		trace.WithAttributes(
			attribute.String("queue", queue),
			attribute.Int("size", len(body)),
		),
	)
	defer span.End()

	_, err := q.client(queue).EnqueueMessage(ctx, encodeMessage(body, q.opts.Base64), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return fmt.Errorf("enqueueing message on %q: %w", queue, err)
	}

	q.logger.Debug("message enqueued", zap.String("queue", queue), zap.Int("size", len(body)))
	return nil
}

// Receive dequeues up to max messages (capped at 32 by the service).
func (q *Queue) Receive(ctx context.Context, queue string, max int) ([]*entity.QueueMessage, error) {
	if max > 32 {
		max = 32
	}

	ctx, span := q.tracer.Start(ctx, "azurestorage.Queue.Receive",
		trace.WithAttributes(attribute.String("queue", queue)),
	)
	defer span.End()

	resp, err := q.client(queue).DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
		NumberOfMessages:  to.Ptr(int32(max)),
		VisibilityTimeout: to.Ptr(int32(q.opts.VisibilityTimeout / time.Second)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dequeue failed")
		return nil, fmt.Errorf("dequeueing from %q: %w", queue, err)
	}

	msgs := make([]*entity.QueueMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}

		var text string
		if m.MessageText != nil {
			text = *m.MessageText
		}
		var count int64
		if m.DequeueCount != nil {
			count = *m.DequeueCount
		}

		msgs = append(msgs, &entity.QueueMessage{
			ID:           *m.MessageID,
			Queue:        queue,
			Body:         decodeIfBase64(text),
			DequeueCount: count,
			Receipt:      receipt{popReceipt: *m.PopReceipt, text: text},
		})
	}

	span.SetAttributes(attribute.Int("messages", len(msgs)))
	return msgs, nil
}

// Complete deletes msg.
func (q *Queue) Complete(ctx context.Context, msg *entity.QueueMessage) error {
	r, ok := msg.Receipt.(receipt)
	if !ok {
		return fmt.Errorf("message %s has no azure receipt", msg.ID)
	}

	_, err := q.client(msg.Queue).DeleteMessage(ctx, msg.ID, r.popReceipt, nil)
	if err != nil {
		return fmt.Errorf("deleting message %s from %q: %w", msg.ID, msg.Queue, err)
	}
	return nil
}

// Abandon makes msg visible again immediately.
func (q *Queue) Abandon(ctx context.Context, msg *entity.QueueMessage) error {
	r, ok := msg.Receipt.(receipt)
	if !ok {
		return fmt.Errorf("message %s has no azure receipt", msg.ID)
	}

	_, err := q.client(msg.Queue).UpdateMessage(ctx, msg.ID, r.popReceipt, r.text, &azqueue.UpdateMessageOptions{
		VisibilityTimeout: to.Ptr(int32(0)),
	})
	if err != nil {
		return fmt.Errorf("releasing message %s on %q: %w", msg.ID, msg.Queue, err)
	}
	return nil
}

// Name identifies the gateway in the health report.
func (q *Queue) Name() string {
	return "queue"
}

// Check reads the queue service properties.
func (q *Queue) Check(ctx context.Context) error {
	_, err := q.service.GetServiceProperties(ctx, nil)
	return err
}

// Close is a no-op; the SDK client holds no long-lived resources.
func (q *Queue) Close() error {
	return nil
}

func encodeMessage(body []byte, b64 bool) string {
	if b64 {
		return base64.StdEncoding.EncodeToString(body)
	}
	return string(body)
}

// decodeIfBase64 returns the decoded bytes when s is valid standard base64
// and s unchanged otherwise. Messages written by other producers may be
// either.
func decodeIfBase64(s string) []byte {
	if len(s) == 0 || len(s)%4 != 0 {
		return []byte(s)
	}

	for _, c := range s {
		if !(('A' <= c && c <= 'Z') ||
			('a' <= c && c <= 'z') ||
			('0' <= c && c <= '9') ||
			c == '+' || c == '/' || c == '=') {
			return []byte(s)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return []byte(s)
	}
	return decoded
}
