package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

const workerQueueGroup = "workers"

// Queue carries ingest events on one subject and extracted payloads on the
// subject named by each message endpoint.
type Queue struct {
	conn          *nats.Conn
	ingestSubject string
	flushTimeout  time.Duration
	logger        *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	FlushTimeout         time.Duration
	Logger               *slog.Logger
}

func New(url, ingestSubject string) (*Queue, error) {
	return NewWithOptions(url, ingestSubject, Options{})
}

func NewWithOptions(url, ingestSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	flushTimeout := options.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 5 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "nats_queue")

	conn, err := nats.Connect(
		url,
		nats.Name("bill-extractor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats.reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		ingestSubject: ingestSubject,
		flushTimeout:  flushTimeout,
		logger:        logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Publish sends the payload to the subject named by msg.Endpoint and waits for
// the server to acknowledge the flush.
func (q *Queue) Publish(ctx context.Context, msg domain.PublishedMessage) error {
	subject := strings.TrimSpace(msg.Endpoint)
	if subject == "" {
		return domain.WrapError(domain.ErrInvalidInput, "nats publish", errors.New("endpoint is required"))
	}
	return q.publish(ctx, subject, []byte(msg.Body))
}

func (q *Queue) PublishIngestEvent(ctx context.Context, event domain.IngestEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ingest event: %w", err)
	}
	return q.publish(ctx, q.ingestSubject, data)
}

func (q *Queue) publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.conn.Publish(subject, data); err != nil {
		return wrapTemporaryIfNeeded("nats publish", err)
	}
	if err := q.conn.FlushTimeout(q.flushTimeout); err != nil {
		return wrapTemporaryIfNeeded("nats flush", err)
	}
	return nil
}

// SubscribeIngestEvents blocks until ctx is cancelled, handing every decoded
// event to handler. Undecodable messages are logged and dropped.
func (q *Queue) SubscribeIngestEvents(ctx context.Context, handler func(context.Context, domain.IngestEvent) error) error {
	return q.subscribe(ctx, q.ingestSubject, func(handlerCtx context.Context, msg *nats.Msg) error {
		var event domain.IngestEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return domain.WrapError(domain.ErrInvalidInput, "decode ingest event", err)
		}
		return handler(handlerCtx, event)
	})
}

// SubscribeResults blocks until ctx is cancelled, handing every payload
// published on subject to handler.
func (q *Queue) SubscribeResults(ctx context.Context, subject string, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, subject, func(handlerCtx context.Context, msg *nats.Msg) error {
		return handler(handlerCtx, string(msg.Data))
	})
}

func (q *Queue) subscribe(ctx context.Context, subject string, handler func(context.Context, *nats.Msg) error) error {
	sub, err := q.conn.QueueSubscribe(subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		start := time.Now()
		if err := handler(handlerCtx, msg); err != nil {
			q.logger.Error("nats.handler.failed",
				"subject", msg.Subject,
				"bytes", len(msg.Data),
				"elapsed_ms", time.Since(start).Milliseconds(),
				"kind", domain.KindOf(err),
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	q.logger.Info("nats.subscribed", "subject", subject, "queue_group", workerQueueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(q.flushTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
