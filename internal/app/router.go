package app

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/statements"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	"github.com/odyssey-erp/estate-ledger/internal/expenses"
	"github.com/odyssey-erp/estate-ledger/internal/income"
	"github.com/odyssey-erp/estate-ledger/internal/maintenance"
	"github.com/odyssey-erp/estate-ledger/internal/observability"
	"github.com/odyssey-erp/estate-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	RBAC    rbac.Middleware
	Metrics *observability.Metrics

	AccountsHandler     *accounts.Handler
	TransactionsHandler *ledger.Handler
	ExpensesHandler     *expenses.Handler
	IncomeHandler       *income.Handler
	MaintenanceHandler  *maintenance.Handler
	StatementsHandler   *statements.Handler
	AuditHandler        *audit.Handler
	JobHandler          *jobs.Handler

	// HealthChecks are run by /healthz; any failure answers 503.
	HealthChecks map[string]func(ctx context.Context) error
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
		RBAC:    params.RBAC,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", healthz(params.HealthChecks))
	r.Handle("/metrics", params.Metrics.Handler())
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api/finance", func(r chi.Router) {
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.TransactionsHandler != nil {
			r.Route("/transactions", params.TransactionsHandler.MountRoutes)
		}
		if params.ExpensesHandler != nil {
			r.Route("/expenses", params.ExpensesHandler.MountRoutes)
		}
		if params.IncomeHandler != nil {
			r.Route("/income", params.IncomeHandler.MountRoutes)
		}
		if params.MaintenanceHandler != nil {
			r.Route("/maintenance", params.MaintenanceHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
		if params.StatementsHandler != nil {
			params.StatementsHandler.MountRoutes(r)
		}
	})
	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "ok"}
		if len(names) > 0 {
			report.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](r.Context()); err != nil {
				report.Status = "degraded"
				report.Checks[name] = err.Error()
				continue
			}
			report.Checks[name] = "ok"
		}
		if report.Status != "ok" {
			httpx.JSON(w, http.StatusServiceUnavailable, httpx.Envelope{Success: false, Error: "service degraded", Data: report})
			return
		}
		httpx.OK(w, http.StatusOK, report)
	}
}
