package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	"github.com/odyssey-erp/estate-ledger/internal/app"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	"github.com/odyssey-erp/estate-ledger/internal/expenses"
	"github.com/odyssey-erp/estate-ledger/internal/income"
	"github.com/odyssey-erp/estate-ledger/internal/maintenance"
	"github.com/odyssey-erp/estate-ledger/internal/observability"
	"github.com/odyssey-erp/estate-ledger/internal/platform/cache"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db/migrations"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, dbpool); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	redisUp := err == nil
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	accountsService := accounts.NewService(accounts.NewRepository(dbpool), logger)
	registry, err := resolver.LoadRegistry(ctx, accountsService, cfg.WellKnownAccounts)
	if err != nil {
		logger.Error("load well-known accounts", slog.Any("error", err))
		os.Exit(1)
	}
	rules := posting.NewRules(resolver.New(accountsService), registry)

	statementCache := statements.NewCache(redisClient, cfg.StatementCacheTTL, logger).WithObserver(metrics)

	ledgerService := ledger.NewService(ledger.NewPGStore(dbpool),
		ledger.WithObserver(metrics),
		ledger.WithNotifier(statementCache),
		ledger.WithLogger(logger),
	)
	statementService := statements.NewService(ledgerService, accountsService, statementCache, registry, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	auditStore := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditStore)
	var auditRecorder audit.Recorder = audit.NewQueueRecorder(jobClient, logger, asynq.MaxRetry(5))
	if !redisUp {
		auditRecorder = audit.NewStoreRecorder(auditStore, logger)
	}

	expensesService := expenses.NewService(expenses.NewRepository(dbpool), ledgerService, rules, auditRecorder, logger)
	incomeService := income.NewService(income.NewRepository(dbpool), ledgerService, rules, auditRecorder, logger)
	maintenanceService := maintenance.NewService(maintenance.NewRepository(dbpool), ledgerService, rules, auditRecorder, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		RBAC:                rbacMiddleware,
		Metrics:             metrics,
		AccountsHandler:     accounts.NewHandler(logger, accountsService, rbacMiddleware),
		TransactionsHandler: ledger.NewHandler(logger, ledgerService, accountsService, rbacMiddleware),
		ExpensesHandler:     expenses.NewHandler(logger, expensesService, rbacMiddleware),
		IncomeHandler:       income.NewHandler(logger, incomeService, rbacMiddleware),
		MaintenanceHandler:  maintenance.NewHandler(logger, maintenanceService, rbacMiddleware),
		StatementsHandler:   statements.NewHandler(logger, statementService, rbacMiddleware, cfg.StatementRatePerMinute),
		AuditHandler:        audit.NewHandler(logger, auditService, rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger),
		HealthChecks: map[string]func(context.Context) error{
			"postgres": func(ctx context.Context) error { return db.Healthy(ctx, dbpool) },
			"redis":    func(ctx context.Context) error { return cache.Healthy(ctx, redisClient) },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

