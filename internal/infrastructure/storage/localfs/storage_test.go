package localfs

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

func TestStorageRoundTripNestedKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "bills", "2024/03/acme.pdf", strings.NewReader("%PDF")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := s.Open(ctx, "bills", "2024/03/acme.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "%PDF" {
		t.Fatalf("expected %%PDF, got %q", got)
	}
}

func TestStorageOpenMissingObject(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = s.Open(context.Background(), "bills", "nope.pdf")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestStorageRejectsEscapingPaths(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "bills", "../../etc/passwd", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for key traversal, got %v", err)
	}
	if err := s.Save(ctx, "../bills", "k", strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bucket traversal, got %v", err)
	}
	if _, err := s.Open(ctx, "", "k"); !domain.IsKind(err, domain.ErrLocationMissing) {
		t.Fatalf("expected ErrLocationMissing, got %v", err)
	}
}

func TestStorageKeepsKeyWhitespace(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "bills", "a.pdf", strings.NewReader("plain")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := s.Open(ctx, "bills", " a.pdf"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected \" a.pdf\" to be a different object, got %v", err)
	}
	if _, err := s.Open(ctx, "bills", " \t"); !domain.IsKind(err, domain.ErrLocationMissing) {
		t.Fatalf("expected ErrLocationMissing for blank key, got %v", err)
	}
	if _, err := s.Open(ctx, "bills", "/a.pdf"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for absolute key, got %v", err)
	}
}

func TestMessageSpoolReadsFromMailBucket(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Save(ctx, "inbound-mail", "msg-1", strings.NewReader("Subject: hi\r\n\r\nbody")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := NewMessageSpool(s, "inbound-mail").RawMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("RawMessage() error = %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !strings.HasPrefix(string(got), "Subject: hi") {
		t.Fatalf("unexpected raw message %q", got)
	}
}
