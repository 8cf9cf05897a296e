package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	ErrLocationMissing   = errors.New("ingest record location missing")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrFetchFailure      = errors.New("document fetch failed")
	ErrInvocationFailure = errors.New("model invocation failed")
	ErrPublishFailure    = errors.New("result publish failed")

	// Model response shape violations, in validation order.
	ErrNoOutput                  = errors.New("no response from model")
	ErrUnsupportedOutputVariant  = errors.New("unknown response from model")
	ErrEmptyContent              = errors.New("no content from model")
	ErrUnsupportedContentVariant = errors.New("unknown content from model")

	ErrInvalidPayload = errors.New("payload does not match schema")

	ErrNoAttachment    = errors.New("no attachment found")
	ErrMissingField    = errors.New("missing field")
	ErrDeliveryFailure = errors.New("notification delivery failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// RecordError reports the batch record that aborted a pipeline run.
type RecordError struct {
	Index  int
	Bucket string
	Key    string
	Err    error
}

func (e *RecordError) Error() string {
	if e == nil {
		return "record error"
	}
	return fmt.Sprintf("record %d (bucket=%q key=%q): %v", e.Index, e.Bucket, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrLocationMissing, "location_missing"},
	{ErrFetchFailure, "fetch_failure"},
	{ErrInvocationFailure, "invocation_failure"},
	{ErrNoOutput, "no_output"},
	{ErrUnsupportedOutputVariant, "unsupported_output_variant"},
	{ErrEmptyContent, "empty_content"},
	{ErrUnsupportedContentVariant, "unsupported_content_variant"},
	{ErrInvalidPayload, "invalid_payload"},
	{ErrPublishFailure, "publish_failure"},
	{ErrNoAttachment, "no_attachment"},
	{ErrMissingField, "missing_field"},
	{ErrDeliveryFailure, "delivery_failure"},
	{ErrInvalidInput, "invalid_input"},
}

// KindOf names the first taxonomy kind err matches, for logs and metric labels.
func KindOf(err error) string {
	if err == nil {
		return "none"
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "unknown"
}
