package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
)

// TemporaryClassifier retries only errors adapters marked ErrTemporary and
// keeps caller cancellation out of breaker statistics.
func TemporaryClassifier(err error) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: false}
}

type RetryingFetcher struct {
	next     ports.DocumentFetcher
	executor *Executor
}

func NewRetryingFetcher(next ports.DocumentFetcher, executor *Executor) *RetryingFetcher {
	return &RetryingFetcher{next: next, executor: executor}
}

func (f *RetryingFetcher) Fetch(ctx context.Context, bucket, key string) (domain.DocumentBlob, error) {
	var blob domain.DocumentBlob
	err := f.executor.Execute(ctx, "storage.fetch", func(ctx context.Context) error {
		var err error
		blob, err = f.next.Fetch(ctx, bucket, key)
		return err
	}, TemporaryClassifier)
	return blob, err
}

type RetryingInvoker struct {
	next     ports.ModelInvoker
	executor *Executor
}

func NewRetryingInvoker(next ports.ModelInvoker, executor *Executor) *RetryingInvoker {
	return &RetryingInvoker{next: next, executor: executor}
}

func (i *RetryingInvoker) Converse(ctx context.Context, req domain.ModelRequest) (*domain.ModelResponse, error) {
	var resp *domain.ModelResponse
	err := i.executor.Execute(ctx, "model.converse", func(ctx context.Context) error {
		var err error
		resp, err = i.next.Converse(ctx, req)
		return err
	}, TemporaryClassifier)
	return resp, err
}

type RetryingPublisher struct {
	next     ports.ResultPublisher
	executor *Executor
}

func NewRetryingPublisher(next ports.ResultPublisher, executor *Executor) *RetryingPublisher {
	return &RetryingPublisher{next: next, executor: executor}
}

func (p *RetryingPublisher) Publish(ctx context.Context, msg domain.PublishedMessage) error {
	return p.executor.Execute(ctx, "queue.publish", func(ctx context.Context) error {
		return p.next.Publish(ctx, msg)
	}, TemporaryClassifier)
}
