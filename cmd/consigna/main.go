package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/consigna/consigna/internal/app"
	"github.com/consigna/consigna/internal/audit"
	audithttp "github.com/consigna/consigna/internal/audit/http"
	"github.com/consigna/consigna/internal/catalog"
	"github.com/consigna/consigna/internal/consignment"
	"github.com/consigna/consigna/internal/cutoff"
	"github.com/consigna/consigna/internal/notify"
	"github.com/consigna/consigna/internal/observability"
	"github.com/consigna/consigna/internal/platform/cache"
	"github.com/consigna/consigna/internal/platform/db"
	"github.com/consigna/consigna/internal/rbac"
	"github.com/consigna/consigna/internal/reliability"
	"github.com/consigna/consigna/internal/shared"
	"github.com/consigna/consigna/internal/stores"
	"github.com/consigna/consigna/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(os.Args[2:]))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLife})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	auditLogger := shared.NewAuditLogger(dbpool)
	auditRecorder := audit.NewRecorder(auditLogger, logger, metrics.Registerer())
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	storeDirectory := stores.NewDirectory(
		stores.NewRepository(dbpool),
		cache.NewJSONCache(redisClient, cfg.StoreCacheTTL),
		cfg.StoreDefaultTZ,
		logger,
	)
	scorer := reliability.NewService(reliability.NewRepository(dbpool), storeDirectory, auditRecorder, logger)
	outbox := notify.NewOutbox(notify.NewPGStore(dbpool), logger)

	engine := consignment.NewService(consignment.Deps{
		Repo:     consignment.NewRepository(dbpool),
		Catalog:  catalog.NewRepository(dbpool),
		Stores:   storeDirectory,
		Scorer:   scorer,
		Audit:    auditRecorder,
		Notifier: outbox,
		Logger:   logger,
	}).WithSubmitRetries(cfg.SubmitRetries)

	sweeper := cutoff.NewSweeper(storeDirectory, engine, redislock.New(redisClient), cutoff.Config{
		Concurrency: cfg.CutoffSweepConcurrency,
		LockTTL:     cfg.CutoffLockTTL,
	}, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		Database:           dbpool,
		Audit:              auditRecorder,
		TransactionHandler: consignment.NewHandler(engine, idempotencyStore, rbacMiddleware, logger),
		CutoffHandler:      cutoff.NewHandler(sweeper, rbacMiddleware, logger),
		ReliabilityHandler: reliability.NewHandler(scorer, logger),
		StoreHandler:       stores.NewHandler(storeDirectory, logger),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewTrailService(auditLogger), engine),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
