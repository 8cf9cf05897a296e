// Package kafka carries extracted payloads over Kafka topics as an
// alternative to NATS subjects.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// Publisher writes each payload to the topic named by the message endpoint.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewPublisher(brokers []string, logger *slog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return newPublisher(w, logger)
}

func newPublisher(w messageWriter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{writer: w, logger: logger.With("component", "kafka-publisher")}
}

// Publish returns once every in-sync replica has the message.
func (p *Publisher) Publish(ctx context.Context, msg domain.PublishedMessage) error {
	topic := strings.TrimSpace(msg.Endpoint)
	if topic == "" {
		return domain.WrapError(domain.ErrInvalidInput, "kafka publish", errors.New("endpoint is required"))
	}
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: []byte(msg.Body),
	})
	if err != nil {
		p.logger.Error("failed to publish message", "topic", topic, "error", err)
		return wrapTemporaryIfNeeded(fmt.Errorf("publishing to kafka: %w", err))
	}
	p.logger.Debug("message published", "topic", topic, "value_size", len(msg.Body))
	return nil
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) && kafkaErr.Temporary() {
		return domain.WrapError(domain.ErrTemporary, "kafka publish", err)
	}
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) && writeErrs.Count() > 0 {
		for _, e := range writeErrs {
			if e == nil {
				continue
			}
			if !errors.As(e, &kafkaErr) || !kafkaErr.Temporary() {
				return err
			}
		}
		return domain.WrapError(domain.ErrTemporary, "kafka publish", err)
	}
	return err
}
