package statements

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/estate-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Handler exposes the statement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	perMinute int
	now       func() time.Time
}

// NewHandler constructs the statement handler. perMinute bounds statement
// requests per actor.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware, perMinute int) *Handler {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &Handler{logger: logger, service: service, rbac: guard, perMinute: perMinute, now: time.Now}
}

// MountRoutes registers statement routes on the finance router.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(h.perMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "too many statement requests", nil)
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ReadRoles...))
		r.Use(limiter)
		r.Get("/proper-accounting/income-statement", h.incomeStatement)
		r.Get("/proper-accounting/income-statement/drilldown", h.drilldown)
		r.Get("/proper-accounting/balance-sheet", h.balanceSheet)
		r.Get("/cash-flow/report", h.cashFlow)
		r.Get("/trial-balance/report", h.trialBalance)
		r.Get("/reports/{kind}/export.xlsx", h.export)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		return "actor:" + actor.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

// parseQuery reads basis, period or startDate/endDate, asOf and residence.
func (h *Handler) parseQuery(r *http.Request) (Query, error) {
	q := r.URL.Query()
	basis, err := reports.ParseBasis(q.Get("basis"))
	if err != nil {
		return Query{}, err
	}
	now := h.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	asOf, err := reports.ParseDate("asOf", q.Get("asOf"), today)
	if err != nil {
		return Query{}, err
	}
	var rng reports.Range
	if start, end := strings.TrimSpace(q.Get("startDate")), strings.TrimSpace(q.Get("endDate")); start != "" || end != "" {
		if start == "" {
			return Query{}, shared.FieldErrors{"startDate": "is required"}
		}
		from, err := reports.ParseDate("startDate", start, time.Time{})
		if err != nil {
			return Query{}, err
		}
		to, err := reports.ParseDate("endDate", end, today)
		if err != nil {
			return Query{}, err
		}
		if rng, err = reports.CustomRange(from, to); err != nil {
			return Query{}, err
		}
	} else if rng, err = reports.ParsePeriod(q.Get("period"), now); err != nil {
		return Query{}, err
	}
	return Query{Basis: basis, Period: rng, AsOf: asOf, ResidenceID: strings.TrimSpace(q.Get("residence"))}, nil
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, tb)
}

func (h *Handler) incomeStatement(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	stmt, err := h.service.IncomeStatement(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, stmt)
}

func (h *Handler) drilldown(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	code := strings.TrimSpace(r.URL.Query().Get("accountCode"))
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if code == "" || month == "" {
		httpx.RespondError(w, r, h.logger, shared.FieldErrors{"accountCode": "accountCode and month are required"})
		return
	}
	drill, err := h.service.Drilldown(r.Context(), q, code, month)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, drill)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, bs)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	cf, err := h.service.CashFlow(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, cf)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	data, filename, err := h.service.Export(r.Context(), chi.URLParam(r, "kind"), q)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
