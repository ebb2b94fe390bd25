package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/estate-ledger/cmd/estatectl/cli"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	"github.com/odyssey-erp/estate-ledger/internal/app"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db"
	"github.com/odyssey-erp/estate-ledger/internal/platform/db/migrations"
)

// poolMigrator runs the embedded migrations against one pool.
type poolMigrator struct {
	pool *pgxpool.Pool
}

func (m poolMigrator) Up(ctx context.Context) error     { return migrations.Up(ctx, m.pool) }
func (m poolMigrator) Down(ctx context.Context) error   { return migrations.Down(ctx, m.pool) }
func (m poolMigrator) Status(ctx context.Context) error { return migrations.Status(ctx, m.pool) }

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	root := cli.NewRootCommand(opener(cfg, logger), os.Stdout)
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("estatectl", slog.Any("error", err))
		os.Exit(1)
	}
}

func opener(cfg *app.Config, logger *slog.Logger) cli.Opener {
	return func(ctx context.Context) (*cli.Env, error) {
		queue := cli.NewJobsCLI(cfg.RedisAddr)
		env := &cli.Env{Queue: queue}

		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Warn("connect postgres", slog.Any("error", err))
			env.Close = func() { _ = queue.Close() }
			return env, nil
		}
		env.Close = func() {
			pool.Close()
			_ = queue.Close()
		}

		accountsService := accounts.NewService(accounts.NewRepository(pool), logger)
		env.Migrator = poolMigrator{pool: pool}
		env.Seeder = accountsService

		registry, err := resolver.LoadRegistry(ctx, accountsService, cfg.WellKnownAccounts)
		if err != nil {
			// An empty or unmigrated database has no chart yet.
			logger.Warn("load well-known accounts", slog.Any("error", err))
			return env, nil
		}
		ledgerService := ledger.NewService(ledger.NewPGStore(pool), ledger.WithLogger(logger))
		env.Balances = statements.NewService(ledgerService, accountsService, nil, registry, logger)
		return env, nil
	}
}
