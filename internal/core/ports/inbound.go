package ports

import (
	"context"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// BatchProcessor is the inbound contract for one ingest-event batch.
type BatchProcessor interface {
	Run(ctx context.Context, event domain.IngestEvent) error
}

// AttachmentIngestor stores the PDF attachment of an inbound message.
type AttachmentIngestor interface {
	Ingest(ctx context.Context, event domain.MailEvent) (*domain.StoredAttachment, error)
}

// BillNotifier renders a published extraction as a user-facing message.
type BillNotifier interface {
	Notify(ctx context.Context, body string) error
}
