package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	"github.com/odyssey-erp/estate-ledger/internal/audit/audittest"
	jobmetrics "github.com/odyssey-erp/estate-ledger/internal/jobs"
)

type stubBalancer struct {
	balances map[reports.Basis]reports.TrialBalance
	queries  []statements.Query
}

func (s *stubBalancer) TrialBalance(_ context.Context, q statements.Query) (reports.TrialBalance, error) {
	s.queries = append(s.queries, q)
	return s.balances[q.Basis], nil
}

func balanced(amount string) reports.TrialBalance {
	v := decimal.RequireFromString(amount)
	return reports.TrialBalance{TotalDebit: v, TotalCredit: v, Balanced: true}
}

func TestIntegrityJobPasses(t *testing.T) {
	stub := &stubBalancer{balances: map[reports.Basis]reports.TrialBalance{
		reports.BasisAccrual: balanced("250"),
		reports.BasisCash:    balanced("150"),
	}}
	job := NewIntegrityJob(stub, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIntegrityTask("2024-04-30")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, stub.queries, 2)
	require.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), stub.queries[0].AsOf)
	require.Equal(t, reports.BasisCash, stub.queries[1].Basis)
}

func TestIntegrityJobReportsImbalance(t *testing.T) {
	stub := &stubBalancer{balances: map[reports.Basis]reports.TrialBalance{
		reports.BasisAccrual: {TotalDebit: decimal.NewFromInt(10), TotalCredit: decimal.NewFromInt(9)},
	}}
	job := NewIntegrityJob(stub, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	err := job.Check(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrOutOfBalance)
	require.Len(t, stub.queries, 1)
}

func TestIntegrityJobRejectsBadPayload(t *testing.T) {
	job := NewIntegrityJob(&stubBalancer{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, []byte(`{"as_of":"yesterday"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type warmer struct {
	calls int
	err   error
}

func (w *warmer) Warm(context.Context) error {
	w.calls++
	return w.err
}

func TestStatementWarmupJob(t *testing.T) {
	w := &warmer{}
	job := NewStatementWarmupJob(w, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, job.Handle(context.Background(), NewStatementWarmupTask()))
	require.Equal(t, 1, w.calls)

	w.err = errors.New("redis down")
	require.Error(t, job.Handle(context.Background(), NewStatementWarmupTask()))
}

func TestAuditRecordJobPersistsEntry(t *testing.T) {
	store := audittest.NewStore()
	job := NewAuditRecordJob(store, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := audit.NewRecordTask(audit.Entry{Action: audit.ActionDelete, ResourceType: "Expense", RecordID: "1", ActorID: "u-1"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	entries := store.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "Expense", entries[0].ResourceType)

	err = job.Handle(context.Background(), asynq.NewTask(TaskAuditRecord, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	store.Fail = true
	require.Error(t, job.Handle(context.Background(), task))
}

func TestTaskByName(t *testing.T) {
	task, err := TaskByName(TaskLedgerIntegrity)
	require.NoError(t, err)
	require.Equal(t, TaskLedgerIntegrity, task.Type())

	task, err = TaskByName(TaskStatementWarmup)
	require.NoError(t, err)
	require.Equal(t, TaskStatementWarmup, task.Type())

	_, err = TaskByName("mail:send")
	require.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool        `json:"success"`
		Data    queueHealth `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, QueueDefault, body.Data.Queue)
}
