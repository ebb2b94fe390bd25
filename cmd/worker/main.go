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

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	"github.com/odyssey-erp/estate-ledger/internal/app"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	jobmetrics "github.com/odyssey-erp/estate-ledger/internal/jobs"
	"github.com/odyssey-erp/estate-ledger/internal/observability"
	"github.com/odyssey-erp/estate-ledger/internal/platform/cache"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db"
	"github.com/odyssey-erp/estate-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	accountsService := accounts.NewService(accounts.NewRepository(pool), logger)
	registry, err := resolver.LoadRegistry(ctx, accountsService, cfg.WellKnownAccounts)
	if err != nil {
		logger.Error("load well-known accounts", slog.Any("error", err))
		os.Exit(1)
	}
	statementCache := statements.NewCache(redisClient, cfg.StatementCacheTTL, logger).WithObserver(metrics)
	ledgerService := ledger.NewService(ledger.NewPGStore(pool), ledger.WithLogger(logger))
	statementService := statements.NewService(ledgerService, accountsService, statementCache, registry, logger)

	integrityJob := jobs.NewIntegrityJob(statementService, logger, jobMetrics)
	warmupJob := jobs.NewStatementWarmupJob(statementService, logger, jobMetrics)
	auditJob := jobs.NewAuditRecordJob(audit.NewRepository(pool), logger, jobMetrics)

	integrityTask, err := jobs.NewIntegrityTask("")
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
			{Type: jobs.TaskStatementWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskAuditRecord, Handler: auditJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.StatementWarmupSchedule, Task: jobs.NewStatementWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.IntegrityCheckSchedule, Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
