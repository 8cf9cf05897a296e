package ports

import (
	"context"
	"io"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// ObjectStorage stores and reads objects addressed by bucket and key.
type ObjectStorage interface {
	Save(ctx context.Context, bucket, key string, data io.Reader) error
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// DocumentFetcher returns the full content of a stored document.
type DocumentFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (domain.DocumentBlob, error)
}

// ModelInvoker sends one converse request and returns the raw envelope.
type ModelInvoker interface {
	Converse(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error)
}

// ResultPublisher enqueues one message per extracted payload.
type ResultPublisher interface {
	Publish(ctx context.Context, msg domain.PublishedMessage) error
}

// IngestEventPublisher announces newly stored documents.
type IngestEventPublisher interface {
	PublishIngestEvent(ctx context.Context, event domain.IngestEvent) error
}

// RawMessageSource returns a full RFC 5322 message by its identifier.
type RawMessageSource interface {
	RawMessage(ctx context.Context, messageID string) (io.ReadCloser, error)
}

// PayloadValidator checks an extracted payload against the output schema.
type PayloadValidator interface {
	Validate(payload string) error
}

// ExtractionLog persists an audit row per published extraction.
type ExtractionLog interface {
	Record(ctx context.Context, rec domain.ExtractionRecord) error
}

// WebhookSender posts a rendered notification.
type WebhookSender interface {
	Send(ctx context.Context, msg domain.WebhookMessage) error
}

// PipelineObserver receives per-stage and per-record outcomes.
type PipelineObserver interface {
	ObserveStage(stage string, elapsedSeconds float64, err error)
	ObserveRecord(elapsedSeconds float64, err error)
	ObserveBatch(records int, err error)
}

// ExtractionLookup reads back the audit log.
type ExtractionLookup interface {
	Latest(ctx context.Context, bucket, key string) (*domain.ExtractionRecord, error)
}
