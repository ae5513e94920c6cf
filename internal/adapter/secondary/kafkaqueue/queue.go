package kafkaqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/WRLC/alma-item-checks-webhook-service/internal/domain/entity"
	"github.com/WRLC/alma-item-checks-webhook-service/internal/port/secondary"
)

// HeaderDequeueCount carries the number of earlier deliveries of a message.
const HeaderDequeueCount = "dequeue-count"

// Options configures the Kafka queue backend.
type Options struct {
	Brokers []string
	GroupID string

	// FetchWait bounds how long Receive waits for the first message.
	FetchWait time.Duration
}

// messageReader is the consumer-group side of *kafka.Reader.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// messageWriter is the producer side of *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Queue implements secondary.QueueSender and secondary.QueueReceiver with
// one topic per queue. A single writer serves every topic; readers are
// created per topic on first Receive and share one consumer group.
//
// Messages of a batch are acknowledged concurrently, so a partition's
// offset is committed only up to the last message before the first one
// still unresolved. A message whose Abandon fails stays unresolved and is
// redelivered after the next restart or rebalance.
type Queue struct {
	writer    messageWriter
	newReader func(topic string) messageReader
	opts      Options
	logger    *zap.Logger

	mu      sync.Mutex
	readers map[string]messageReader

	ackMu   sync.Mutex
	offsets map[partitionKey]*offsetTracker
}

var (
	_ secondary.QueueSender   = (*Queue)(nil)
	_ secondary.QueueReceiver = (*Queue)(nil)
)

// New creates a Kafka-backed queue.
func New(opts Options, logger *zap.Logger) *Queue {
	if opts.FetchWait <= 0 {
		opts.FetchWait = 500 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(opts.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka queue initialized",
		zap.Strings("brokers", opts.Brokers),
		zap.String("group_id", opts.GroupID),
	)

	q := &Queue{
		writer:  writer,
		opts:    opts,
		logger:  logger.Named("kafka-queue"),
		readers: make(map[string]messageReader),
		offsets: make(map[partitionKey]*offsetTracker),
	}
	q.newReader = q.dialReader
	return q
}

// Send writes body to the topic named queue.
func (q *Queue) Send(ctx context.Context, queue string, body []byte) error {
	return q.write(ctx, kafka.Message{Topic: queue, Value: body})
}

func (q *Queue) write(ctx context.Context, msg kafka.Message) error {
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing message to kafka topic %q: %w", msg.Topic, err)
	}

	q.logger.Debug("message produced",
		zap.String("topic", msg.Topic),
		zap.Int("value_size", len(msg.Value)),
	)
	return nil
}

// Receive fetches up to max messages, waiting at most FetchWait overall.
func (q *Queue) Receive(ctx context.Context, queue string, max int) ([]*entity.QueueMessage, error) {
	reader := q.readerFor(queue)

	fctx, cancel := context.WithTimeout(ctx, q.opts.FetchWait)
	defer cancel()

	var msgs []*entity.QueueMessage
	for len(msgs) < max {
		m, err := reader.FetchMessage(fctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			if len(msgs) > 0 {
				break
			}
			return nil, fmt.Errorf("fetching from kafka topic %q: %w", queue, err)
		}

		q.track(m)
		msgs = append(msgs, &entity.QueueMessage{
			ID:           fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
			Queue:        queue,
			Body:         m.Value,
			DequeueCount: priorDeliveries(m) + 1,
			Receipt:      m,
		})
	}
	return msgs, nil
}

// Complete marks the message resolved and commits its partition as far as
// every earlier fetched message is resolved too.
func (q *Queue) Complete(ctx context.Context, msg *entity.QueueMessage) error {
	m, ok := msg.Receipt.(kafka.Message)
	if !ok {
		return fmt.Errorf("message %s has no kafka receipt", msg.ID)
	}
	return q.resolve(ctx, msg.Queue, m)
}

// Abandon re-publishes the message with its delivery count incremented and
// then resolves the original, since Kafka offsets cannot be rewound per
// message. When the re-publish fails the original stays unresolved and
// holds back commits on its partition.
func (q *Queue) Abandon(ctx context.Context, msg *entity.QueueMessage) error {
	m, ok := msg.Receipt.(kafka.Message)
	if !ok {
		return fmt.Errorf("message %s has no kafka receipt", msg.ID)
	}

	retry := kafka.Message{
		Topic: m.Topic,
		Key:   m.Key,
		Value: m.Value,
		Headers: withHeader(m.Headers, HeaderDequeueCount,
			strconv.FormatInt(msg.DequeueCount, 10)),
	}
	if err := q.write(ctx, retry); err != nil {
		q.logger.Warn("re-publish failed, holding partition commits",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return err
	}

	return q.resolve(ctx, msg.Queue, m)
}

// Close shuts down the writer and every reader.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var errs *multierror.Error
	if err := q.writer.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing kafka writer: %w", err))
	}
	for topic, r := range q.readers {
		if err := r.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing reader for %s: %w", topic, err))
		}
	}
	return errs.ErrorOrNil()
}

// Name identifies the backend in the health report.
func (q *Queue) Name() string {
	return "queue"
}

// Check dials the first reachable broker.
func (q *Queue) Check(ctx context.Context) error {
	var dialer kafka.Dialer
	var last error
	for _, broker := range q.opts.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		last = err
	}
	if last == nil {
		last = errors.New("no kafka brokers configured")
	}
	return last
}

// track registers a fetched message as unresolved.
func (q *Queue) track(m kafka.Message) {
	q.ackMu.Lock()
	defer q.ackMu.Unlock()

	key := partitionKey{topic: m.Topic, partition: m.Partition}
	t, ok := q.offsets[key]
	if !ok {
		t = newOffsetTracker()
		q.offsets[key] = t
	}
	t.add(m.Offset)
}

// resolve marks m done and commits the partition's resolved prefix. Commits
// are serialized so a lower offset never lands after a higher one.
func (q *Queue) resolve(ctx context.Context, queue string, m kafka.Message) error {
	q.ackMu.Lock()
	defer q.ackMu.Unlock()

	t, ok := q.offsets[partitionKey{topic: m.Topic, partition: m.Partition}]
	if !ok {
		return fmt.Errorf("kafka message %s/%d/%d was not fetched by this queue", m.Topic, m.Partition, m.Offset)
	}

	offset, ok := t.resolve(m.Offset)
	if !ok {
		q.logger.Debug("commit held behind unresolved offset",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return nil
	}

	commit := kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: offset}
	if err := q.readerFor(queue).CommitMessages(ctx, commit); err != nil {
		return fmt.Errorf("committing kafka offset %s/%d/%d: %w", m.Topic, m.Partition, offset, err)
	}
	return nil
}

func (q *Queue) readerFor(topic string) messageReader {
	q.mu.Lock()
	defer q.mu.Unlock()

	if r, ok := q.readers[topic]; ok {
		return r
	}

	r := q.newReader(topic)
	q.readers[topic] = r

	q.logger.Info("kafka reader created", zap.String("topic", topic))
	return r
}

func (q *Queue) dialReader(topic string) messageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.opts.Brokers,
		GroupID:  q.opts.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  q.opts.FetchWait,
	})
}

func priorDeliveries(m kafka.Message) int64 {
	for _, h := range m.Headers {
		if h.Key == HeaderDequeueCount {
			n, err := strconv.ParseInt(string(h.Value), 10, 64)
			if err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func withHeader(headers []kafka.Header, key, value string) []kafka.Header {
	out := make([]kafka.Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != key {
			out = append(out, h)
		}
	}
	return append(out, kafka.Header{Key: key, Value: []byte(value)})
}
