package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/bill-extractor/internal/config"
	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
	"github.com/kirillkom/bill-extractor/internal/observability/metrics"
)

const maxEventBodyBytes = 1 << 20

type RouterOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.HTTPServerMetrics
	// Extractions is nil when the audit log is disabled.
	Extractions ports.ExtractionLookup
}

type Router struct {
	cfg         config.Config
	pipeline    ports.BatchProcessor
	ingestor    ports.AttachmentIngestor
	extractions ports.ExtractionLookup
	metrics     *metrics.HTTPServerMetrics
	logger      *slog.Logger
}

func NewRouter(
	cfg config.Config,
	pipeline ports.BatchProcessor,
	ingestor ports.AttachmentIngestor,
	options RouterOptions,
) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:         cfg,
		pipeline:    pipeline,
		ingestor:    ingestor,
		extractions: options.Extractions,
		metrics:     options.Metrics,
		logger:      logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/events/ingest", rt.ingestEvent)
	mux.HandleFunc("/v1/mail/events", rt.mailEvent)
	mux.HandleFunc("/v1/extractions", rt.latestExtraction)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ingestEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.pipeline == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "extraction pipeline is not configured"})
		return
	}

	var event domain.IngestEvent
	if err := decodeJSONBody(w, r, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := rt.pipeline.Run(r.Context(), event); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": len(event.Records)})
}

func (rt *Router) mailEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.ingestor == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "mail ingest is not configured"})
		return
	}

	var event domain.MailEvent
	if err := decodeJSONBody(w, r, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(event.MessageID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messageId is required"})
		return
	}

	stored, err := rt.ingestor.Ingest(r.Context(), event)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, stored)
}

func (rt *Router) latestExtraction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.extractions == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "extraction log is disabled"})
		return
	}

	bucket := r.URL.Query().Get("bucket")
	key := r.URL.Query().Get("key")
	if strings.TrimSpace(bucket) == "" || strings.TrimSpace(key) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bucket and key are required"})
		return
	}

	rec, err := rt.extractions.Latest(r.Context(), bucket, key)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]any{
		"error": err.Error(),
		"kind":  domain.KindOf(err),
	}
	var recErr *domain.RecordError
	if errors.As(err, &recErr) {
		body["record"] = recErr.Index
	}
	if status >= http.StatusInternalServerError {
		rt.logger.Error("http.request.failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"kind", body["kind"],
			"error", err,
		)
	}
	writeJSON(w, status, body)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodyBytes)
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
