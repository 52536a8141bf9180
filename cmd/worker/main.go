package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/consigna/consigna/internal/app"
	"github.com/consigna/consigna/internal/audit"
	"github.com/consigna/consigna/internal/catalog"
	"github.com/consigna/consigna/internal/consignment"
	"github.com/consigna/consigna/internal/cutoff"
	jobmetrics "github.com/consigna/consigna/internal/jobs"
	"github.com/consigna/consigna/internal/notify"
	"github.com/consigna/consigna/internal/platform/cache"
	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
	"github.com/consigna/consigna/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLife})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)
	auditLogger := shared.NewAuditLogger(pool)
	auditRecorder := audit.NewRecorder(auditLogger, logger, nil)

	storeDirectory := stores.NewDirectory(
		stores.NewRepository(pool),
		cache.NewJSONCache(redisClient, cfg.StoreCacheTTL),
		cfg.StoreDefaultTZ,
		logger,
	)
	outboxStore := notify.NewPGStore(pool)
	engine := consignment.NewService(consignment.Deps{
		Repo:     consignment.NewRepository(pool),
		Catalog:  catalog.NewRepository(pool),
		Stores:   storeDirectory,
		Scorer:   reliability.NewService(reliability.NewRepository(pool), storeDirectory, auditRecorder, logger),
		Audit:    auditRecorder,
		Notifier: notify.NewOutbox(outboxStore, logger),
		Logger:   logger,
	}).WithSubmitRetries(cfg.SubmitRetries)

	sweeper := cutoff.NewSweeper(storeDirectory, engine, redislock.New(redisClient), cutoff.Config{
		Concurrency: cfg.CutoffSweepConcurrency,
		LockTTL:     cfg.CutoffLockTTL,
	}, logger)
	sweepJob := jobs.NewCutoffSweepJob(sweeper, logger, metrics)

	publisher, closePublisher := buildPublisher(cfg, logger)
	defer closePublisher()
	relay := notify.NewRelay(outboxStore, publisher, notify.RelayConfig{
		BatchSize:  cfg.OutboxBatchSize,
		MaxRetries: cfg.OutboxMaxRetries,
	}, logger)
	relayJob := jobs.NewOutboxRelayJob(relay, logger, metrics)

	purgeJob := jobs.NewIdempotencyPurgeJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, metrics)

	sweepTask, err := jobs.NewCutoffSweepTask("")
	if err != nil {
		logger.Error("build cutoff sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCutoffSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskOutboxRelay, Handler: relayJob.Handle},
			{Type: jobs.TaskIdempotencyPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.CutoffSweepCron, Task: sweepTask},
			{Spec: cfg.OutboxRelayCron, Task: jobs.NewOutboxRelayTask()},
			{Spec: cfg.IdempotencyPurgeCron, Task: jobs.NewIdempotencyPurgeTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildPublisher(cfg *app.Config, logger *slog.Logger) (notify.Publisher, func()) {
	if !cfg.KafkaEnabled() {
		logger.Info("kafka brokers not configured, notifications are logged only")
		return notify.LogPublisher{Logger: logger}, func() {}
	}
	producer, err := notify.NewSyncProducer(cfg.KafkaBrokers)
	if err != nil {
		logger.Error("connect kafka", slog.Any("error", err), slog.Any("brokers", cfg.KafkaBrokers))
		os.Exit(1)
	}
	publisher := notify.NewKafkaPublisher(producer, cfg.KafkaNotifyTopic)
	return publisher, func() {
		if err := publisher.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
			logger.Warn("kafka close", slog.Any("error", err))
		}
	}
}
