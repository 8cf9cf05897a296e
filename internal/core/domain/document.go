package domain

import (
	"path"
	"strings"
	"time"
)

type DocumentFormat string

// FormatPDF is the only format the pipeline submits to the model.
const FormatPDF DocumentFormat = "pdf"

const PDFContentType = "application/pdf"

// IngestEvent mirrors the object-store notification layout:
// {"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"k"}}}]}.
type IngestEvent struct {
	Records []IngestRecord `json:"Records"`
}

type IngestRecord struct {
	S3 StorageEntity `json:"s3"`
}

type StorageEntity struct {
	Bucket BucketEntity `json:"bucket"`
	Object ObjectEntity `json:"object"`
}

type BucketEntity struct {
	Name string `json:"name,omitempty"`
}

type ObjectEntity struct {
	Key string `json:"key,omitempty"`
}

// NewIngestRecord builds a record naming bucket/key.
func NewIngestRecord(bucket, key string) IngestRecord {
	return IngestRecord{S3: StorageEntity{
		Bucket: BucketEntity{Name: bucket},
		Object: ObjectEntity{Key: key},
	}}
}

// Location returns the record's bucket and key as sent. ok is false when
// either is blank; otherwise whitespace is part of the name.
func (r IngestRecord) Location() (bucket, key string, ok bool) {
	bucket, key = r.S3.Bucket.Name, r.S3.Object.Key
	return bucket, key, !isBlank(bucket) && !isBlank(key)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

type DocumentBlob struct {
	Name   string
	Format DocumentFormat
	Bytes  []byte
}

// DocumentName derives the logical document name from an object key.
// Inference endpoints only accept alphanumerics, whitespace, hyphens,
// parentheses and square brackets in document names.
func DocumentName(key string) string {
	base := path.Base(strings.TrimSpace(key))
	base = strings.TrimSuffix(base, path.Ext(base))
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == ' ', r == '(', r == ')', r == '[', r == ']':
			return r
		default:
			return '-'
		}
	}, base)
	name = strings.Trim(name, " ")
	if name == "" || name == "." || name == "/" {
		return "document"
	}
	return name
}

// PublishedMessage is one outbound queue message carrying an extracted payload.
type PublishedMessage struct {
	Endpoint string `json:"endpoint"`
	Body     string `json:"body"`
}

// ExtractionRecord is the audit row written after a successful publish.
type ExtractionRecord struct {
	ID          string    `json:"id"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ModelID     string    `json:"model_id"`
	Endpoint    string    `json:"endpoint"`
	Payload     string    `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}
