package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/bill-extractor/internal/config"
	"github.com/kirillkom/bill-extractor/internal/core/ports"
	"github.com/kirillkom/bill-extractor/internal/core/schema"
	"github.com/kirillkom/bill-extractor/internal/core/usecase"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/llm/bedrock"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/queue/kafka"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/resilience"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/webhook/discord"
	"github.com/kirillkom/bill-extractor/internal/observability/logging"
	"github.com/kirillkom/bill-extractor/internal/observability/metrics"
)

// App holds the collaborators built once at process start. Ingestor,
// Notifier and Extractions are nil when their settings are absent.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics

	Queue       *nats.Queue
	Extractor   ports.BatchProcessor
	Ingestor    ports.AttachmentIngestor
	Notifier    ports.BillNotifier
	Extractions ports.ExtractionLookup

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	logger := logging.New(os.Stdout, service, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Require(config.RoleExtractor); err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	catalog, err := schema.Load()
	if err != nil {
		return nil, fmt.Errorf("load bill schema: %w", err)
	}
	prompt := usecase.BuildExtractionPrompt(catalog.Text(), usecase.DefaultExtractionRules)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.IngestSubject, nats.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closeFns = append(app.closeFns, queue.Close)

	var publisher ports.ResultPublisher = queue
	if cfg.QueueBackend == config.QueueBackendKafka {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers, logger)
		app.closeFns = append(app.closeFns, func() { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher
	}

	app.Metrics = metrics.NewPipelineMetrics(service, registerer)

	var fetcher ports.DocumentFetcher = usecase.NewStorageDocumentFetcher(storage)
	var invoker ports.ModelInvoker = bedrock.New(cfg.InferenceURL, cfg.InferenceAPIKey, bedrock.Options{
		Timeout: time.Duration(cfg.InferenceTimeoutSeconds) * time.Second,
		Logger:  logger,
	})
	if cfg.ResilienceEnabled {
		rcfg := resilience.DefaultConfig()
		rcfg.RetryMaxAttempts = cfg.RetryMaxAttempts
		rcfg.RetryInitialBackoff = time.Duration(cfg.RetryBackoffMS) * time.Millisecond
		rcfg.BreakerEnabled = cfg.BreakerEnabled
		logger.Info("bootstrap.resilience", "policy", rcfg)
		executor := resilience.NewExecutor(rcfg,
			resilience.WithLogger(logger),
			resilience.WithRetryObserver(app.Metrics.ObserveRetry),
		)
		fetcher = resilience.NewRetryingFetcher(fetcher, executor)
		invoker = resilience.NewRetryingInvoker(invoker, executor)
		publisher = resilience.NewRetryingPublisher(publisher, executor)
	}

	options := usecase.ExtractOptions{Observer: app.Metrics, Logger: logger}
	if cfg.StrictPayload {
		options.PayloadValidator = catalog
	}
	if cfg.PostgresDSN != "" {
		repo, db, err := openExtractionLog(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.closeFns = append(app.closeFns, func() { _ = db.Close() })
		options.ExtractionLog = repo
		app.Extractions = repo
	}

	app.Extractor = usecase.NewExtractDocumentUseCase(
		usecase.ExtractConfig{ModelID: cfg.ModelID, QueueEndpoint: cfg.ResultQueue, Prompt: prompt},
		fetcher,
		invoker,
		publisher,
		options,
	)

	if cfg.Require(config.RoleMailIngest) == nil {
		spool := localfs.NewMessageSpool(storage, cfg.MailBucket)
		app.Ingestor = observedIngestor{
			next:    usecase.NewIngestAttachmentUseCase(spool, storage, queue, cfg.SourceBucket, logger),
			metrics: app.Metrics,
		}
	}
	if cfg.Require(config.RoleNotifier) == nil {
		app.Notifier = observedNotifier{
			next:    usecase.NewNotifyBillUseCase(discord.New(cfg.WebhookURL, 10*time.Second), logger),
			metrics: app.Metrics,
		}
	}

	logger.Info("bootstrap.ready",
		"model", cfg.ModelID,
		"result_queue", cfg.ResultQueue,
		"queue_backend", cfg.QueueBackend,
		"strict_payload", cfg.StrictPayload,
		"resilience", cfg.ResilienceEnabled,
		"audit_log", app.Extractions != nil,
		"mail_ingest", app.Ingestor != nil,
		"notifier", app.Notifier != nil,
	)
	ok = true
	return app, nil
}

func openExtractionLog(ctx context.Context, dsn string) (*postgres.ExtractionRepository, *sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewExtractionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, db, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
