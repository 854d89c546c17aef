package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/infra/archive"
	"github.com/mario-guerra/translation-service/internal/infra/blob"
	"github.com/mario-guerra/translation-service/internal/infra/cleanup"
	"github.com/mario-guerra/translation-service/internal/infra/config"
	"github.com/mario-guerra/translation-service/internal/infra/email"
	"github.com/mario-guerra/translation-service/internal/infra/metrics"
	"github.com/mario-guerra/translation-service/internal/infra/postgres"
	"github.com/mario-guerra/translation-service/internal/infra/rabbitmq"
	"github.com/mario-guerra/translation-service/internal/infra/speech"
	"github.com/mario-guerra/translation-service/internal/infra/tracing"
	"github.com/mario-guerra/translation-service/internal/usecase"
	"github.com/mario-guerra/translation-service/internal/worker"
	"github.com/mario-guerra/translation-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting translation-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, "migrations"); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// Object store
	store, err := blob.NewStorage(blob.StorageConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
	})
	fatalOnErr(err, "create object store")

	// Dead-letter publisher on its own connection
	dlqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for dlq publisher")
	defer dlqConn.Close()

	dlq, err := rabbitmq.NewDLQPublisher(dlqConn, cfg.RabbitMQDLQ)
	fatalOnErr(err, "create dlq publisher")

	// Task queue
	queue, err := rabbitmq.NewQueue(rabbitmq.QueueConfig{
		URL:   cfg.RabbitMQURL,
		Queue: cfg.RabbitMQTaskQueue,
		DLQ:   cfg.RabbitMQDLQ,
	}, log)
	fatalOnErr(err, "create task queue")
	defer queue.Close()

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	provider := speech.NewClient(speech.ClientConfig{
		Endpoint: cfg.SpeechEndpoint,
		APIKey:   cfg.SpeechAPIKey,
	}, log)
	zipper := archive.NewZipCreator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewProcessTaskUseCase(
		store, provider, zipper,
		notifier, dlq, repo,
		log,
		usecase.ProcessTaskConfig{
			TempDir:         cfg.TempDir,
			MaxRetries:      cfg.MaxRetries,
			RetryBackoff:    cfg.RetryBackoff,
			DownloadBaseURL: cfg.DownloadBaseURL,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Container retention sweeper
	if cfg.CleanupEnabled {
		sweeper := cleanup.NewSweeper(store, log, cfg.CleanupInterval, cfg.RetentionDays)
		go sweeper.Run(ctx)
	}

	// Worker loop
	w := worker.New(queue, uc.Execute, log, worker.Config{
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		PurgeOnStart: cfg.PurgeOnStart,
	})
	w.Start(ctx)

	log.Info("translation-worker started, polling for tasks")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := w.Stop(shutdownCtx); err != nil {
		log.Warn("worker did not stop before deadline", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown failed", zap.Error(err))
	}

	log.Info("translation-worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
