package bootstrap

import (
	"context"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
	"github.com/kirillkom/bill-extractor/internal/observability/metrics"
)

type observedIngestor struct {
	next    ports.AttachmentIngestor
	metrics *metrics.PipelineMetrics
}

func (o observedIngestor) Ingest(ctx context.Context, event domain.MailEvent) (*domain.StoredAttachment, error) {
	stored, err := o.next.Ingest(ctx, event)
	o.metrics.ObserveAttachment(err)
	return stored, err
}

type observedNotifier struct {
	next    ports.BillNotifier
	metrics *metrics.PipelineMetrics
}

func (o observedNotifier) Notify(ctx context.Context, body string) error {
	err := o.next.Notify(ctx, body)
	o.metrics.ObserveNotification(err)
	return err
}
