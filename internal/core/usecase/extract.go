package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
)

const (
	StageFetch    = "fetch"
	StageInvoke   = "invoke"
	StageValidate = "validate"
	StagePublish  = "publish"
)

// ExtractConfig is fixed for the lifetime of the process.
type ExtractConfig struct {
	ModelID       string
	QueueEndpoint string
	Prompt        string
}

type ExtractOptions struct {
	PayloadValidator ports.PayloadValidator
	ExtractionLog    ports.ExtractionLog
	Observer         ports.PipelineObserver
	Logger           *slog.Logger
}

type ExtractDocumentUseCase struct {
	cfg       ExtractConfig
	fetcher   ports.DocumentFetcher
	invoker   ports.ModelInvoker
	publisher ports.ResultPublisher

	validator ports.PayloadValidator
	auditLog  ports.ExtractionLog
	observer  ports.PipelineObserver
	logger    *slog.Logger
	now       func() time.Time
}

func NewExtractDocumentUseCase(
	cfg ExtractConfig,
	fetcher ports.DocumentFetcher,
	invoker ports.ModelInvoker,
	publisher ports.ResultPublisher,
	options ExtractOptions,
) *ExtractDocumentUseCase {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractDocumentUseCase{
		cfg:       cfg,
		fetcher:   fetcher,
		invoker:   invoker,
		publisher: publisher,
		validator: options.PayloadValidator,
		auditLog:  options.ExtractionLog,
		observer:  options.Observer,
		logger:    logger.With("component", "extract_pipeline"),
		now:       time.Now,
	}
}

// Run processes the records of one event in order. The first failing record
// aborts the batch; later records are left untouched for the delivery layer.
func (uc *ExtractDocumentUseCase) Run(ctx context.Context, event domain.IngestEvent) (err error) {
	defer func() {
		if uc.observer != nil {
			uc.observer.ObserveBatch(len(event.Records), err)
		}
	}()

	uc.logger.Info("pipeline.batch.start", "records", len(event.Records))
	for idx, record := range event.Records {
		bucket, key, ok := record.Location()
		if !ok {
			err := domain.WrapError(
				domain.ErrLocationMissing,
				"read record location",
				fmt.Errorf("bucket=%q key=%q", bucket, key),
			)
			uc.observeRecord(0, err)
			return uc.abort(idx, bucket, key, err)
		}

		start := uc.now()
		err := uc.processRecord(ctx, idx, bucket, key)
		uc.observeRecord(time.Since(start), err)
		if err != nil {
			return uc.abort(idx, bucket, key, err)
		}
	}
	uc.logger.Info("pipeline.batch.done", "records", len(event.Records))
	return nil
}

func (uc *ExtractDocumentUseCase) processRecord(ctx context.Context, idx int, bucket, key string) error {
	uc.logger.Info("pipeline.record.start", "record", idx, "bucket", bucket, "key", key)

	blob, err := uc.fetch(ctx, bucket, key)
	if err != nil {
		return err
	}

	resp, err := uc.invoke(ctx, blob)
	if err != nil {
		return err
	}

	payload, err := uc.validate(resp)
	if err != nil {
		return err
	}

	msg := domain.PublishedMessage{Endpoint: uc.cfg.QueueEndpoint, Body: payload}
	if err := uc.publish(ctx, msg); err != nil {
		return err
	}

	uc.logger.Info("pipeline.record.published",
		"record", idx,
		"bucket", bucket,
		"key", key,
		"endpoint", msg.Endpoint,
		"payload_bytes", len(payload),
	)
	uc.recordAudit(ctx, bucket, key, msg)
	return nil
}

func (uc *ExtractDocumentUseCase) fetch(ctx context.Context, bucket, key string) (domain.DocumentBlob, error) {
	start := uc.now()
	blob, err := uc.fetcher.Fetch(ctx, bucket, key)
	if err != nil && !domain.IsKind(err, domain.ErrLocationMissing) {
		err = domain.WrapError(domain.ErrFetchFailure, "fetch document", err)
	}
	uc.observeStage(StageFetch, start, err)
	return blob, err
}

func (uc *ExtractDocumentUseCase) invoke(ctx context.Context, blob domain.DocumentBlob) (*domain.ModelResponse, error) {
	start := uc.now()
	resp, err := uc.invoker.Converse(ctx, buildModelRequest(uc.cfg.ModelID, uc.cfg.Prompt, blob))
	if err != nil {
		err = domain.WrapError(domain.ErrInvocationFailure, "invoke model", err)
	}
	uc.observeStage(StageInvoke, start, err)
	return resp, err
}

func (uc *ExtractDocumentUseCase) validate(resp *domain.ModelResponse) (string, error) {
	start := uc.now()
	payload, err := ExtractPayload(resp)
	if err != nil {
		err = fmt.Errorf("validate model response: %w", err)
	} else if uc.validator != nil {
		err = uc.validator.Validate(payload)
	}
	uc.observeStage(StageValidate, start, err)
	return payload, err
}

func (uc *ExtractDocumentUseCase) publish(ctx context.Context, msg domain.PublishedMessage) error {
	start := uc.now()
	err := uc.publisher.Publish(ctx, msg)
	if err != nil {
		err = domain.WrapError(domain.ErrPublishFailure, "publish result", err)
	}
	uc.observeStage(StagePublish, start, err)
	return err
}

// recordAudit never fails the record: the message is already enqueued.
func (uc *ExtractDocumentUseCase) recordAudit(ctx context.Context, bucket, key string, msg domain.PublishedMessage) {
	if uc.auditLog == nil {
		return
	}
	rec := domain.ExtractionRecord{
		ID:          uuid.NewString(),
		Bucket:      bucket,
		Key:         key,
		ModelID:     uc.cfg.ModelID,
		Endpoint:    msg.Endpoint,
		Payload:     msg.Body,
		PublishedAt: uc.now().UTC(),
	}
	if err := uc.auditLog.Record(ctx, rec); err != nil {
		uc.logger.Warn("pipeline.audit.record_failed", "bucket", bucket, "key", key, "error", err)
	}
}

func (uc *ExtractDocumentUseCase) abort(idx int, bucket, key string, err error) error {
	uc.logger.Error("pipeline.batch.aborted",
		"record", idx,
		"bucket", bucket,
		"key", key,
		"kind", domain.KindOf(err),
		"error", err,
	)
	return &domain.RecordError{Index: idx, Bucket: bucket, Key: key, Err: err}
}

func (uc *ExtractDocumentUseCase) observeStage(stage string, start time.Time, err error) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveStage(stage, time.Since(start).Seconds(), err)
}

func (uc *ExtractDocumentUseCase) observeRecord(elapsed time.Duration, err error) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveRecord(elapsed.Seconds(), err)
}

func buildModelRequest(modelID, prompt string, blob domain.DocumentBlob) domain.ModelRequest {
	return domain.ModelRequest{
		ModelID: modelID,
		Messages: []domain.Message{{
			Role: domain.RoleUser,
			Content: []domain.ContentBlock{
				domain.TextBlock(prompt),
				domain.DocumentContent(blob),
			},
		}},
	}
}
