package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// MessageHandler is a callback invoked for each Kafka message value.
type MessageHandler func(ctx context.Context, body string) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic in a consumer group. A message is committed only
// after the handler succeeds, and the consumer never moves past a message the
// handler has not accepted.
type Consumer struct {
	reader  messageReader
	logger  *slog.Logger
	handler MessageHandler

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, groupID, topic string, handler MessageHandler, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, handler, logger)
}

func newConsumer(r messageReader, topic string, handler MessageHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:     r,
		logger:     logger.With("component", "kafka-consumer", "topic", topic),
		handler:    handler,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
	}
}

// Start consumes until ctx is cancelled. Temporary handler failures are
// retried on the same message with backoff. Any other failure stops the
// consumer with the message uncommitted, so the group redelivers it after
// restart.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	fetchBackoff := c.minBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.stop(ctx)
			}
			c.logger.Error("failed to fetch message", "error", err, "backoff_ms", fetchBackoff.Milliseconds())
			if !sleep(ctx, fetchBackoff) {
				return c.stop(ctx)
			}
			fetchBackoff = c.next(fetchBackoff)
			continue
		}
		fetchBackoff = c.minBackoff

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return c.stop(ctx)
			}
			_ = c.reader.Close()
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, string(msg.Value))
		if err == nil {
			break
		}
		if !domain.IsKind(err, domain.ErrTemporary) {
			c.logger.Error("message rejected",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"kind", domain.KindOf(err),
				"error", err,
			)
			return fmt.Errorf("kafka message partition=%d offset=%d: %w", msg.Partition, msg.Offset, err)
		}
		c.logger.Warn("message retry",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = c.next(backoff)
	}

	// A failed commit is covered by the next successful one.
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
	return nil
}

func (c *Consumer) stop(ctx context.Context) error {
	c.logger.Info("consumer stopping", "reason", ctx.Err())
	return c.reader.Close()
}

func (c *Consumer) next(backoff time.Duration) time.Duration {
	return min(backoff*2, c.maxBackoff)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
