package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/primary"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// Options configures a Worker.
type Options struct {
	Queue           string
	PollInterval    time.Duration
	BatchSize       int
	Concurrency     int
	MaxDequeueCount int64
}

// Worker polls a queue at regular intervals and hands each message to a
// handler. Messages are completed on success; failed messages are abandoned
// for redelivery until they reach MaxDequeueCount, then moved to the poison
// queue. It respects context cancellation for graceful shutdown; in-flight
// messages are allowed to finish.
type Worker struct {
	handler  primary.MessageHandler
	receiver secondary.QueueReceiver
	sender   secondary.QueueSender
	opts     Options
	logger   *zap.Logger
}

// NewWorker creates a Worker for opts.Queue.
func NewWorker(
	handler primary.MessageHandler,
	receiver secondary.QueueReceiver,
	sender secondary.QueueSender,
	opts Options,
	logger *zap.Logger,
) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxDequeueCount <= 0 {
		opts.MaxDequeueCount = domain.DefaultMaxDequeueCount
	}

	return &Worker{
		handler:  handler,
		receiver: receiver,
		sender:   sender,
		opts:     opts,
		logger:   logger.Named("worker").With(zap.String("queue", opts.Queue)),
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.Duration("poll_interval", w.opts.PollInterval),
		zap.Int("batch_size", w.opts.BatchSize),
		zap.Int("concurrency", w.opts.Concurrency),
	)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			// Keep draining while batches come back full.
			for ctx.Err() == nil {
				if w.poll(ctx) < w.opts.BatchSize {
					break
				}
			}
		}
	}
}

// poll receives one batch and processes it. It returns the batch size.
func (w *Worker) poll(ctx context.Context) int {
	msgs, err := w.receiver.Receive(ctx, w.opts.Queue, w.opts.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			// Log but do not return -- the worker should keep running.
			w.logger.Error("error receiving messages", zap.Error(err))
		}
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}

	// Handlers outlive shutdown so a message is never half processed.
	hctx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			w.process(hctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	return len(msgs)
}

func (w *Worker) process(ctx context.Context, msg *entity.QueueMessage) {
	logger := w.logger.With(
		zap.String("message_id", msg.ID),
		zap.Int64("dequeue_count", msg.DequeueCount),
	)

	err := w.handler.HandleMessage(ctx, msg)
	if err == nil {
		if cerr := w.receiver.Complete(ctx, msg); cerr != nil {
			logger.Error("failed to complete message", zap.Error(cerr))
		}
		return
	}

	if msg.DequeueCount < w.opts.MaxDequeueCount {
		logger.Warn("message handling failed, abandoning for redelivery",
			zap.String("kind", domain.KindOf(err).String()),
			zap.Error(err),
		)
		if aerr := w.receiver.Abandon(ctx, msg); aerr != nil {
			logger.Error("failed to abandon message", zap.Error(aerr))
		}
		return
	}

	poison := w.opts.Queue + domain.PoisonQueueSuffix
	logger.Error("message exceeded max dequeue count, moving to poison queue",
		zap.String("poison_queue", poison),
		zap.Error(err),
	)
	if serr := w.sender.Send(ctx, poison, msg.Body); serr != nil {
		logger.Error("failed to send message to poison queue", zap.Error(serr))
		if aerr := w.receiver.Abandon(ctx, msg); aerr != nil {
			logger.Error("failed to abandon message", zap.Error(aerr))
		}
		return
	}
	if cerr := w.receiver.Complete(ctx, msg); cerr != nil {
		logger.Error("failed to complete poisoned message", zap.Error(cerr))
	}
}
