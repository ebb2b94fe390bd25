package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/estate-ledger/internal/jobs"
)

// Warmer pre-renders statements into the cache.
type Warmer interface {
	Warm(ctx context.Context) error
}

// StatementWarmupJob fills the statement cache for the current period.
type StatementWarmupJob struct {
	Statements Warmer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Timeout    time.Duration
}

// NewStatementWarmupJob wires dependencies for the warmup handler.
func NewStatementWarmupJob(w Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementWarmupJob {
	return &StatementWarmupJob{Statements: w, Logger: logger, Metrics: metrics, Timeout: time.Minute}
}

// Handle processes TaskStatementWarmup tasks.
func (j *StatementWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Statements == nil {
		return errors.New("statement warmup: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskStatementWarmup))

	tracker := metrics.Track(TaskStatementWarmup)
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	if err := j.Statements.Warm(ctx); err != nil {
		logger.Error("statement warmup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("statement warmup completed", slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}
