package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/bill-extractor/internal/config"
	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/observability/metrics"
)

type pipelineFake struct {
	events []domain.IngestEvent
	err    error
}

func (f *pipelineFake) Run(_ context.Context, event domain.IngestEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type ingestorFake struct {
	err error
}

func (f ingestorFake) Ingest(_ context.Context, event domain.MailEvent) (*domain.StoredAttachment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.StoredAttachment{
		Bucket:    "bills",
		Key:       "0190b3f0-0000-7000-8000-000000000001",
		Size:      42,
		StoredAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MessageID: event.MessageID,
	}, nil
}

type lookupFake struct {
	rec *domain.ExtractionRecord
	err error
}

func (f lookupFake) Latest(context.Context, string, string) (*domain.ExtractionRecord, error) {
	return f.rec, f.err
}

func newTestRouter(pipeline *pipelineFake, ingestor ingestorFake, options RouterOptions) http.Handler {
	return NewRouter(config.Config{}, pipeline, ingestor, options).Handler()
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(bytes.NewReader(res.Body.Bytes())).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(&pipelineFake{}, ingestorFake{}, RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestIngestEventRunsPipeline(t *testing.T) {
	pipeline := &pipelineFake{}
	handler := newTestRouter(pipeline, ingestorFake{}, RouterOptions{})

	res := postJSON(t, handler, "/v1/events/ingest", `{"Records":[{"s3":{"bucket":{"name":"bills"},"object":{"key":"k.pdf"}}}]}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(pipeline.events) != 1 {
		t.Fatalf("expected one pipeline run, got %d", len(pipeline.events))
	}
	bucket, key, ok := pipeline.events[0].Records[0].Location()
	if !ok || bucket != "bills" || key != "k.pdf" {
		t.Fatalf("unexpected decoded record bucket=%q key=%q", bucket, key)
	}
}

func TestIngestEventMapsPipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{
			name:   "missing location",
			err:    &domain.RecordError{Index: 1, Err: domain.WrapError(domain.ErrLocationMissing, "read", errors.New("key"))},
			status: http.StatusBadRequest,
			kind:   "location_missing",
		},
		{
			name:   "model returned nothing",
			err:    &domain.RecordError{Index: 0, Err: domain.ErrNoOutput},
			status: http.StatusBadGateway,
			kind:   "no_output",
		},
		{
			name: "temporary invocation failure",
			err: &domain.RecordError{Index: 0, Err: domain.WrapError(domain.ErrInvocationFailure, "invoke",
				domain.WrapError(domain.ErrTemporary, "converse", errors.New("503")))},
			status: http.StatusServiceUnavailable,
			kind:   "invocation_failure",
		},
		{
			name:   "missing object",
			err:    &domain.RecordError{Index: 0, Err: domain.WrapError(domain.ErrFetchFailure, "fetch", domain.ErrDocumentNotFound)},
			status: http.StatusNotFound,
			kind:   "fetch_failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestRouter(&pipelineFake{err: tt.err}, ingestorFake{}, RouterOptions{})
			res := postJSON(t, handler, "/v1/events/ingest", `{"Records":[]}`)
			if res.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, res.Code)
			}
			body := decodeBody(t, res)
			if body["kind"] != tt.kind {
				t.Fatalf("expected kind %q, got %v", tt.kind, body["kind"])
			}
			if _, ok := body["record"]; !ok {
				t.Fatalf("expected failing record index in body")
			}
		})
	}
}

func TestIngestEventRejectsInvalidJSONAndMethod(t *testing.T) {
	pipeline := &pipelineFake{}
	handler := newTestRouter(pipeline, ingestorFake{}, RouterOptions{})

	if res := postJSON(t, handler, "/v1/events/ingest", `{"Records":`); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/events/ingest", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
	if len(pipeline.events) != 0 {
		t.Fatalf("pipeline must not run")
	}
}

func TestMailEventReturnsStoredLocation(t *testing.T) {
	handler := newTestRouter(&pipelineFake{}, ingestorFake{}, RouterOptions{})
	res := postJSON(t, handler, "/v1/mail/events", `{"messageId":"m-1","subject":"Invoice"}`)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	body := decodeBody(t, res)
	if body["bucket"] != "bills" || body["message_id"] != "m-1" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMailEventErrors(t *testing.T) {
	handler := newTestRouter(&pipelineFake{}, ingestorFake{err: domain.ErrNoAttachment}, RouterOptions{})
	if res := postJSON(t, handler, "/v1/mail/events", `{"messageId":"m-1"}`); res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
	if res := postJSON(t, handler, "/v1/mail/events", `{"subject":"x"}`); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing messageId, got %d", res.Code)
	}
}

func TestLatestExtraction(t *testing.T) {
	rec := &domain.ExtractionRecord{ID: "id-1", Bucket: "bills", Key: "k", Payload: `{"amount":1}`}
	handler := newTestRouter(&pipelineFake{}, ingestorFake{}, RouterOptions{Extractions: lookupFake{rec: rec}})

	req := httptest.NewRequest(http.MethodGet, "/v1/extractions?bucket=bills&key=k", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if decodeBody(t, res)["payload"] != `{"amount":1}` {
		t.Fatalf("unexpected body %s", res.Body.String())
	}

	disabled := newTestRouter(&pipelineFake{}, ingestorFake{}, RouterOptions{})
	res = httptest.NewRecorder()
	disabled.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/extractions?bucket=bills&key=k", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when audit log disabled, got %d", res.Code)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	handler := newTestRouter(&pipelineFake{}, ingestorFake{}, RouterOptions{Metrics: metrics.NewHTTPServerMetrics("api")})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "billx_http_requests_total") {
		t.Fatalf("expected http metrics, got %d", res.Code)
	}
}
