package localfs

import (
	"context"
	"io"
)

// MessageSpool reads raw inbound mail that the mail relay drops into a bucket,
// one object per message id.
type MessageSpool struct {
	storage *Storage
	bucket  string
}

func NewMessageSpool(storage *Storage, bucket string) *MessageSpool {
	return &MessageSpool{storage: storage, bucket: bucket}
}

func (m *MessageSpool) RawMessage(ctx context.Context, messageID string) (io.ReadCloser, error) {
	return m.storage.Open(ctx, m.bucket, messageID)
}
