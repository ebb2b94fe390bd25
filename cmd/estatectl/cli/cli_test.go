package cli

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting/postingtest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	"github.com/odyssey-erp/estate-ledger/jobs"
)

type stubMigrator struct {
	calls []string
}

func (m *stubMigrator) Up(context.Context) error     { m.calls = append(m.calls, "up"); return nil }
func (m *stubMigrator) Down(context.Context) error   { m.calls = append(m.calls, "down"); return nil }
func (m *stubMigrator) Status(context.Context) error { m.calls = append(m.calls, "status"); return nil }

type stubQueue struct {
	triggered []string
}

func (q *stubQueue) Trigger(_ context.Context, name string) (*asynq.TaskInfo, error) {
	task, err := jobs.TaskByName(name)
	if err != nil {
		return nil, err
	}
	q.triggered = append(q.triggered, task.Type())
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (q *stubQueue) InspectQueue(context.Context) (QueueStats, error) {
	return QueueStats{Queue: jobs.QueueDefault, Pending: 2, Retry: 1}, nil
}

func (q *stubQueue) ListScheduled(context.Context, int) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s-1", Type: jobs.TaskStatementWarmup, NextProcessAt: time.Date(2024, 3, 1, 1, 15, 0, 0, time.UTC)}}, nil
}

func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	closed := false
	env.Close = func() { closed = true }
	root := NewRootCommand(func(context.Context) (*Env, error) { return env, nil }, out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		require.True(t, closed, "env must be released")
	}
	return out.String(), err
}

func TestMigrateSubcommands(t *testing.T) {
	m := &stubMigrator{}
	for _, step := range []string{"up", "status", "down"} {
		out, err := run(t, &Env{Migrator: m}, "migrate", step)
		require.NoError(t, err)
		require.Contains(t, out, "migrate "+step+": ok")
	}
	require.Equal(t, []string{"up", "status", "down"}, m.calls)
}

func TestMigrateWithoutDatabase(t *testing.T) {
	_, err := run(t, &Env{}, "migrate", "up")
	require.ErrorIs(t, err, errNoDatabase)
}

func TestSeedIsIdempotent(t *testing.T) {
	svc := accounts.NewService(accountstest.NewRepository(), nil)

	out, err := run(t, &Env{Seeder: svc}, "seed")
	require.NoError(t, err)
	require.Contains(t, out, fmt.Sprintf("seeded %d accounts", len(accounts.DefaultChart)))

	out, err = run(t, &Env{Seeder: svc}, "seed")
	require.NoError(t, err)
	require.Contains(t, out, "seeded 0 accounts")
}

func TestJobsCommands(t *testing.T) {
	q := &stubQueue{}

	out, err := run(t, &Env{Queue: q}, "jobs", "trigger", jobs.TaskLedgerIntegrity)
	require.NoError(t, err)
	require.Contains(t, out, "enqueued ledger:integrity id=task-1")

	_, err = run(t, &Env{Queue: q}, "jobs", "trigger", "inventory:revalue")
	require.Error(t, err)
	require.Equal(t, []string{jobs.TaskLedgerIntegrity}, q.triggered)

	out, err = run(t, &Env{Queue: q}, "jobs", "inspect")
	require.NoError(t, err)
	require.Contains(t, out, "PENDING")
	require.Contains(t, out, "default")

	out, err = run(t, &Env{Queue: q}, "jobs", "scheduled", "--size", "5")
	require.NoError(t, err)
	require.Contains(t, out, "statements:warmup")
	require.Contains(t, out, "2024-03-01 01:15")

	_, err = run(t, &Env{}, "jobs", "inspect")
	require.ErrorIs(t, err, errNoQueue)
}

func TestTrialBalancePrint(t *testing.T) {
	fx := postingtest.New()
	book := ledgertest.NewBook()
	ledgerSvc := ledger.NewService(book)
	ctx := context.Background()

	in, err := fx.Rules.IncomeReceived(ctx, posting.Event{
		SourceModel:   ledger.ModelOtherIncome,
		SourceID:      "7",
		Category:      "Rental",
		PaymentMethod: "Bank Transfer",
		Amount:        decimal.RequireFromString("1250.50"),
		Date:          time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = ledgerSvc.Post(ctx, book, in)
	require.NoError(t, err)

	env := &Env{Balances: statements.NewService(ledgerSvc, fx.Accounts, nil, fx.Registry, nil)}

	out, err := run(t, env, "tb", "print", "--as-of", "2024-03-31")
	require.NoError(t, err)
	require.Contains(t, out, "trial balance as of 2024-03-31 (accrual)")
	require.Contains(t, out, "Bank Account")
	require.Contains(t, out, "1250.50")
	require.Contains(t, out, "balanced: true")

	out, err = run(t, env, "tb", "print", "--as-of", "2024-03-31", "--basis", "cash", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"balanced": true`)

	_, err = run(t, env, "tb", "print", "--basis", "modified")
	require.Error(t, err)

	_, err = run(t, &Env{}, "tb", "print")
	require.EqualError(t, err, "estatectl: ledger not available")
}
