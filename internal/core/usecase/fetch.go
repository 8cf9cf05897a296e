package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
)

type StorageDocumentFetcher struct {
	storage ports.ObjectStorage
}

func NewStorageDocumentFetcher(storage ports.ObjectStorage) *StorageDocumentFetcher {
	return &StorageDocumentFetcher{storage: storage}
}

// Fetch streams the whole object into one buffer regardless of size.
func (f *StorageDocumentFetcher) Fetch(ctx context.Context, bucket, key string) (domain.DocumentBlob, error) {
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		return domain.DocumentBlob{}, domain.WrapError(
			domain.ErrLocationMissing,
			"fetch document",
			fmt.Errorf("bucket=%q key=%q", bucket, key),
		)
	}

	reader, err := f.storage.Open(ctx, bucket, key)
	if err != nil {
		return domain.DocumentBlob{}, fmt.Errorf("open object: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return domain.DocumentBlob{}, fmt.Errorf("read object: %w", err)
	}

	return domain.DocumentBlob{
		Name:   domain.DocumentName(key),
		Format: domain.FormatPDF,
		Bytes:  buf.Bytes(),
	}, nil
}
