package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/bill-extractor/internal/core/domain"
)

// PipelineMetrics implements ports.PipelineObserver. Error labels use the
// domain kind name so dashboards can split failures by stage and kind.
type PipelineMetrics struct {
	service string

	stageTotal     *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	recordTotal    *prometheus.CounterVec
	recordDuration *prometheus.HistogramVec
	batchTotal     *prometheus.CounterVec
	batchRecords   *prometheus.HistogramVec
	retriesTotal   *prometheus.CounterVec
	notifyTotal    *prometheus.CounterVec
	ingestTotal    *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billx",
			Subsystem: "pipeline",
			Name:      "stage_total",
			Help:      "Pipeline stage executions by stage and error kind.",
		},
		[]string{"service", "stage", "kind"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billx",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service", "stage"},
	)
	recordTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billx",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Processed ingest records by status and error kind.",
		},
		[]string{"service", "status", "kind"},
	)
	recordDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billx",
			Subsystem: "pipeline",
			Name:      "record_duration_seconds",
			Help:      "End to end record processing duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billx",
			Subsystem: "pipeline",
			Name:      "batches_total",
			Help:      "Completed pipeline runs by status.",
		},
		[]string{"service", "status"},
	)
	batchRecords := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billx",
			Subsystem: "pipeline",
			Name:      "batch_records",
			Help:      "Records per ingest event.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billx",
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retries scheduled by operation.",
		},
		[]string{"service", "operation"},
	)
	notifyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billx",
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Bill notifications by error kind.",
		},
		[]string{"service", "kind"},
	)
	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billx",
			Subsystem: "mail",
			Name:      "attachments_total",
			Help:      "Mail events handled by the attachment ingestor by error kind.",
		},
		[]string{"service", "kind"},
	)

	registerer.MustRegister(
		stageTotal,
		stageDuration,
		recordTotal,
		recordDuration,
		batchTotal,
		batchRecords,
		retriesTotal,
		notifyTotal,
		ingestTotal,
	)

	return &PipelineMetrics{
		service:        service,
		stageTotal:     stageTotal,
		stageDuration:  stageDuration,
		recordTotal:    recordTotal,
		recordDuration: recordDuration,
		batchTotal:     batchTotal,
		batchRecords:   batchRecords,
		retriesTotal:   retriesTotal,
		notifyTotal:    notifyTotal,
		ingestTotal:    ingestTotal,
	}
}

func (m *PipelineMetrics) ObserveStage(stage string, elapsedSeconds float64, err error) {
	m.stageTotal.WithLabelValues(m.service, stage, domain.KindOf(err)).Inc()
	m.stageDuration.WithLabelValues(m.service, stage).Observe(elapsedSeconds)
}

func (m *PipelineMetrics) ObserveRecord(elapsedSeconds float64, err error) {
	status := statusOf(err)
	m.recordTotal.WithLabelValues(m.service, status, domain.KindOf(err)).Inc()
	m.recordDuration.WithLabelValues(m.service, status).Observe(elapsedSeconds)
}

func (m *PipelineMetrics) ObserveBatch(records int, err error) {
	m.batchTotal.WithLabelValues(m.service, statusOf(err)).Inc()
	m.batchRecords.WithLabelValues(m.service).Observe(float64(records))
}

func (m *PipelineMetrics) ObserveRetry(operation string, _ int) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) ObserveNotification(err error) {
	m.notifyTotal.WithLabelValues(m.service, domain.KindOf(err)).Inc()
}

func (m *PipelineMetrics) ObserveAttachment(err error) {
	m.ingestTotal.WithLabelValues(m.service, domain.KindOf(err)).Inc()
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
