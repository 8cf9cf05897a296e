package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
)

const maxMIMEDepth = 8

type IngestAttachmentUseCase struct {
	source  ports.RawMessageSource
	storage ports.ObjectStorage
	events  ports.IngestEventPublisher
	bucket  string
	logger  *slog.Logger
	newKey  func() (string, error)
}

func NewIngestAttachmentUseCase(
	source ports.RawMessageSource,
	storage ports.ObjectStorage,
	events ports.IngestEventPublisher,
	bucket string,
	logger *slog.Logger,
) *IngestAttachmentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestAttachmentUseCase{
		source:  source,
		storage: storage,
		events:  events,
		bucket:  bucket,
		logger:  logger.With("component", "attachment_ingest"),
		newKey:  newTimeOrderedKey,
	}
}

// Ingest stores the first PDF part of the named message under a fresh
// time-ordered key and announces it on the ingest queue.
func (uc *IngestAttachmentUseCase) Ingest(ctx context.Context, event domain.MailEvent) (*domain.StoredAttachment, error) {
	messageID := strings.TrimSpace(event.MessageID)
	if messageID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest attachment", errors.New("message id is required"))
	}

	raw, err := uc.source.RawMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("read raw message: %w", err)
	}
	defer raw.Close()

	attachment, err := FindPDFAttachment(raw)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", messageID, err)
	}

	key, err := uc.newKey()
	if err != nil {
		return nil, fmt.Errorf("generate object key: %w", err)
	}
	if err := uc.storage.Save(ctx, uc.bucket, key, bytes.NewReader(attachment)); err != nil {
		return nil, fmt.Errorf("save attachment: %w", err)
	}

	stored := &domain.StoredAttachment{
		Bucket:    uc.bucket,
		Key:       key,
		Size:      len(attachment),
		StoredAt:  time.Now().UTC(),
		MessageID: messageID,
	}
	uc.logger.Info("attachment.stored",
		"message_id", messageID,
		"bucket", stored.Bucket,
		"key", stored.Key,
		"bytes", stored.Size,
	)

	if uc.events != nil {
		event := domain.IngestEvent{Records: []domain.IngestRecord{domain.NewIngestRecord(stored.Bucket, stored.Key)}}
		if err := uc.events.PublishIngestEvent(ctx, event); err != nil {
			return stored, fmt.Errorf("publish ingest event: %w", err)
		}
	}
	return stored, nil
}

// FindPDFAttachment returns the decoded body of the first MIME part, depth
// first, whose Content-Type names application/pdf.
func FindPDFAttachment(r io.Reader) ([]byte, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse message", err)
	}

	body, found, err := findPDFPart(textproto.MIMEHeader(msg.Header), msg.Body, 0)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNoAttachment
	}
	return body, nil
}

func findPDFPart(header textproto.MIMEHeader, body io.Reader, depth int) ([]byte, bool, error) {
	contentType := header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxMIMEDepth {
			return nil, false, nil
		}
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, domain.WrapError(domain.ErrInvalidInput, "read mime part", err)
			}
			data, found, err := findPDFPart(part.Header, part, depth+1)
			if err != nil || found {
				return data, found, err
			}
		}
	}

	// Only parts count; a bare single-part message is not an attachment.
	if depth == 0 || !strings.Contains(strings.ToLower(contentType), domain.PDFContentType) {
		return nil, false, nil
	}
	data, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrInvalidInput, "decode attachment", err)
	}
	return data, true, nil
}

func decodeTransfer(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

func newTimeOrderedKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
