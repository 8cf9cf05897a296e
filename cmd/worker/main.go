package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/bill-extractor/internal/bootstrap"
	"github.com/kirillkom/bill-extractor/internal/config"
	"github.com/kirillkom/bill-extractor/internal/core/domain"
	"github.com/kirillkom/bill-extractor/internal/infrastructure/queue/kafka"
	"github.com/kirillkom/bill-extractor/internal/observability/metrics"
)

const batchTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	app, err := bootstrap.New(ctx, cfg, "worker", registry)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return serveMetrics(groupCtx, app, registry)
	})

	group.Go(func() error {
		app.Logger.Info("worker.subscribed", "subject", cfg.IngestSubject)
		return app.Queue.SubscribeIngestEvents(groupCtx, func(handlerCtx context.Context, event domain.IngestEvent) error {
			runCtx, cancel := context.WithTimeout(handlerCtx, batchTimeout)
			defer cancel()
			return app.Extractor.Run(runCtx, event)
		})
	})

	if app.Notifier != nil {
		group.Go(func() error {
			return consumeResults(groupCtx, app)
		})
	} else {
		app.Logger.Info("worker.notifier.disabled", "reason", "WEBHOOK_URL not set")
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error("worker.stopped", "error", err)
		os.Exit(1)
	}
}

func consumeResults(ctx context.Context, app *bootstrap.App) error {
	cfg := app.Config
	app.Logger.Info("worker.notifier.subscribed", "queue", cfg.ResultQueue, "backend", cfg.QueueBackend)
	if cfg.QueueBackend == config.QueueBackendKafka {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, cfg.ResultQueue, app.Notifier.Notify, app.Logger)
		return consumer.Start(ctx)
	}
	return app.Queue.SubscribeResults(ctx, cfg.ResultQueue, app.Notifier.Notify)
}

func serveMetrics(ctx context.Context, app *bootstrap.App, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	server := &http.Server{
		Addr:              ":" + app.Config.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("worker.metrics.listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
