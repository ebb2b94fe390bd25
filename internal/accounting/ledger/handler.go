package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// AccountLookup resolves account codes in manual journals.
type AccountLookup interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
}

// Handler exposes the transaction endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	accounts  AccountLookup
	validator *validator.Validate
	rbac      rbac.Middleware
	now       func() time.Time
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, lookup AccountLookup, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, accounts: lookup, validator: httpx.NewValidator(), rbac: guard, now: time.Now}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ReadRoles...))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PostingRoles...))
		r.Post("/", h.create)
	})
}

type manualLineRequest struct {
	AccountCode string          `json:"accountCode" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description" validate:"max=255"`
}

type manualRequest struct {
	Date        string              `json:"date" validate:"required,datetime=2006-01-02"`
	Description string              `json:"description" validate:"required,max=255"`
	Reference   string              `json:"reference" validate:"max=120"`
	ResidenceID string              `json:"residenceId" validate:"max=64"`
	Category    string              `json:"category" validate:"max=64"`
	Lines       []manualLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	date, _ := time.Parse("2006-01-02", req.Date)
	actor, _ := shared.ActorFromContext(r.Context())
	in := PostingInput{
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		ResidenceID: req.ResidenceID,
		Type:        "manual",
		CreatedBy:   actor.ID,
		Source:      SourceManual,
		SourceRef:   SourceRef{Model: ModelManual, ID: shared.NewBusinessNumber("MAN", h.now())},
	}
	for idx, line := range req.Lines {
		acc, err := h.accounts.GetByCode(r.Context(), line.AccountCode)
		if err != nil {
			if errors.Is(err, accounts.ErrAccountNotFound) {
				err = shared.FieldErrors{fmt.Sprintf("lines[%d].accountCode", idx): "unknown account " + line.AccountCode}
			}
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		in.Lines = append(in.Lines, PostingLine{
			Account:     acc,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			Metadata:    ManualMetadata{Note: req.Description, Category: req.Category},
		})
	}
	tx, err := h.service.PostManual(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, tx)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := TransactionFilter{ResidenceID: q.Get("residence"), Type: q.Get("type")}
	var err error
	if filter.From, err = parseOptionalDate(q.Get("startDate")); err != nil {
		httpx.RespondError(w, r, h.logger, shared.FieldErrors{"startDate": "must be YYYY-MM-DD"})
		return
	}
	if filter.To, err = parseOptionalDate(q.Get("endDate")); err != nil {
		httpx.RespondError(w, r, h.logger, shared.FieldErrors{"endDate": "must be YYYY-MM-DD"})
		return
	}
	if model, id := q.Get("sourceModel"), q.Get("sourceId"); model != "" && id != "" {
		filter.SourceRef = &SourceRef{Model: model, ID: id}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	paging := shared.NewPagination(page, perPage, 0)
	filter.Limit = paging.PerPage
	filter.Offset = paging.Offset()
	txs, total, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	httpx.OKWithMeta(w, txs, shared.NewPagination(paging.Page, filter.Limit, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, r, h.logger, shared.FieldErrors{"id": "must be numeric"})
		return
	}
	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, tx)
}

func parseOptionalDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
