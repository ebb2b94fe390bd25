// Package audit records business mutations in an append-only log. Recording
// is best effort and never fails the operation being audited.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Actions written by the business services.
const (
	ActionCreate  = "create"
	ActionApprove = "approve"
	ActionPay     = "pay"
	ActionReject  = "reject"
	ActionReceive = "receive"
	ActionRefund  = "refund"
	ActionDelete  = "delete"
	ActionPost    = "post"
)

// TaskRecord is the asynq task type carrying one audit entry.
const TaskRecord = "audit:record"

// Entry is one audit log row.
type Entry struct {
	ID           int64     `json:"id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resourceType"`
	RecordID     string    `json:"recordId"`
	ActorID      string    `json:"actorId"`
	ActorRole    string    `json:"actorRole"`
	Before       any       `json:"before,omitempty"`
	After        any       `json:"after,omitempty"`
	Details      any       `json:"details,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NewEntry fills the actor from ctx and stamps the time.
func NewEntry(ctx context.Context, action, resourceType, recordID string) Entry {
	actor, _ := shared.ActorFromContext(ctx)
	return Entry{
		Action:       action,
		ResourceType: resourceType,
		RecordID:     recordID,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		OccurredAt:   time.Now().UTC(),
	}
}

// Filter narrows audit listings.
type Filter struct {
	ResourceType string
	RecordID     string
	Limit        int
}

// Recorder accepts audit entries. Implementations swallow failures.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// StoreRecorder writes entries synchronously.
type StoreRecorder struct {
	store  Store
	logger *slog.Logger
}

// NewStoreRecorder constructs a synchronous recorder.
func NewStoreRecorder(store Store, logger *slog.Logger) *StoreRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreRecorder{store: store, logger: logger}
}

// Record inserts e and logs a warning on failure.
func (r *StoreRecorder) Record(ctx context.Context, e Entry) {
	if _, err := r.store.Insert(ctx, e); err != nil {
		r.logger.Warn("audit write failed",
			slog.String("action", e.Action),
			slog.String("resource", e.ResourceType),
			slog.String("record", e.RecordID),
			slog.Any("error", err))
	}
}

// Enqueuer submits asynq tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueRecorder hands entries to the worker through the audit task.
type QueueRecorder struct {
	queue  Enqueuer
	logger *slog.Logger
	opts   []asynq.Option
}

// NewQueueRecorder constructs an asynchronous recorder.
func NewQueueRecorder(queue Enqueuer, logger *slog.Logger, opts ...asynq.Option) *QueueRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueRecorder{queue: queue, logger: logger, opts: opts}
}

// Record enqueues e and logs a warning when the queue is unavailable.
func (r *QueueRecorder) Record(ctx context.Context, e Entry) {
	task, err := NewRecordTask(e)
	if err == nil {
		_, err = r.queue.EnqueueContext(ctx, task, r.opts...)
	}
	if err != nil {
		r.logger.Warn("audit enqueue failed",
			slog.String("action", e.Action),
			slog.String("resource", e.ResourceType),
			slog.String("record", e.RecordID),
			slog.Any("error", err))
	}
}

// NewRecordTask wraps e in an asynq task.
func NewRecordTask(e Entry) (*asynq.Task, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("audit: encode entry: %w", err)
	}
	return asynq.NewTask(TaskRecord, payload), nil
}

// ParseRecordTask decodes the entry carried by an audit task.
func ParseRecordTask(t *asynq.Task) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return Entry{}, fmt.Errorf("audit: decode entry: %w", err)
	}
	return e, nil
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}
