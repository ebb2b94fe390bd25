package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	jobmetrics "github.com/odyssey-erp/estate-ledger/internal/jobs"
)

// ErrOutOfBalance reports a trial balance whose debits and credits differ.
var ErrOutOfBalance = errors.New("ledger integrity: trial balance out of balance")

// TrialBalancer builds trial balances.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, q statements.Query) (reports.TrialBalance, error)
}

// IntegrityJob verifies that the trial balance balances on both bases.
type IntegrityJob struct {
	Statements TrialBalancer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewIntegrityJob wires dependencies for the integrity handler.
func NewIntegrityJob(tb TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntegrityJob {
	return &IntegrityJob{
		Statements: tb,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *IntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Statements == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	asOf, err := reports.ParseDate("as_of", payload.AsOf, j.now())
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return j.Check(ctx, asOf)
}

// Check runs the integrity check as of the given day.
func (j *IntegrityJob) Check(ctx context.Context, asOf time.Time) (resultErr error) {
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("as_of", asOf.Format(reports.DateLayout)))
	for _, basis := range []reports.Basis{reports.BasisAccrual, reports.BasisCash} {
		tb, err := j.Statements.TrialBalance(ctx, statements.Query{Basis: basis, AsOf: asOf})
		if err != nil {
			logger.Error("build trial balance", slog.String("basis", string(basis)), slog.Any("error", err))
			return err
		}
		diff, _ := tb.TotalDebit.Sub(tb.TotalCredit).Abs().Float64()
		j.metrics().SetTrialBalanceDifference(string(basis), diff)
		if !tb.Balanced {
			logger.Error("trial balance out of balance",
				slog.String("basis", string(basis)),
				slog.String("debit", tb.TotalDebit.StringFixed(2)),
				slog.String("credit", tb.TotalCredit.StringFixed(2)))
			return fmt.Errorf("%w: %s basis debit %s credit %s", ErrOutOfBalance, basis,
				tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2))
		}
	}
	logger.Info("ledger integrity check passed")
	return nil
}

func (j *IntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *IntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
