package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/estate-ledger/internal/audit"
	jobmetrics "github.com/odyssey-erp/estate-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity runs the trial balance integrity check.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskStatementWarmup pre-renders the current statements into the cache.
	TaskStatementWarmup = "statements:warmup"
	// TaskAuditRecord persists an audit entry written by the API.
	TaskAuditRecord = audit.TaskRecord
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// IntegrityPayload selects the as-of date checked; empty means today.
type IntegrityPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// NewIntegrityTask constructs the integrity check task.
func NewIntegrityTask(asOf string) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewStatementWarmupTask constructs the statement warmup task.
func NewStatementWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskStatementWarmup, nil)
}

// TaskByName builds a task with its default payload for manual triggers.
func TaskByName(name string) (*asynq.Task, error) {
	switch name {
	case TaskLedgerIntegrity:
		return NewIntegrityTask("")
	case TaskStatementWarmup:
		return NewStatementWarmupTask(), nil
	default:
		return nil, fmt.Errorf("jobs: unsupported job %s", name)
	}
}

// AuditRecordJob writes queued audit entries to the store.
type AuditRecordJob struct {
	Store   audit.Store
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob wires the audit writer.
func NewAuditRecordJob(store audit.Store, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskAuditRecord tasks.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("audit record: handler not configured")
	}
	entry, err := audit.ParseRecordTask(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskAuditRecord)
	if _, err := j.Store.Insert(ctx, entry); err != nil {
		logger := j.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("audit record failed",
			slog.String("action", entry.Action),
			slog.String("resource", entry.ResourceType),
			slog.String("record", entry.RecordID),
			slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}
