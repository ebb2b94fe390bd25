package accounts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/estate-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Handler exposes chart of accounts endpoints.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs the account handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator(), rbac: guard}
}

// MountRoutes registers account routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.ReadRoles...))
		r.Get("/", h.list)
		r.Get("/{code}", h.get)
		r.Get("/{code}/descendants", h.descendants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.AccountAdminRoles...))
		r.Post("/", h.create)
		r.Patch("/{code}", h.update)
		r.Delete("/{code}", h.delete)
		r.Post("/{code}/deactivate", h.deactivate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := ParseAccountType(raw)
		if !ok {
			httpx.RespondError(w, r, h.logger, ErrInvalidType)
			return
		}
		filter.Type = t
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, r, h.logger, shared.FieldErrors{"active": "must be true or false"})
			return
		}
		filter.Active = &active
	}
	accounts, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if accounts == nil {
		accounts = []Account{}
	}
	httpx.OK(w, http.StatusOK, accounts)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) descendants(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.Descendants(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, codes)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := httpx.Validate(h.validator, in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	acc, err := h.service.Create(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusCreated, acc)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := httpx.Validate(h.validator, in); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	acc, err := h.service.Update(r.Context(), chi.URLParam(r, "code"), in)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Deactivate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, acc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Delete(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}
