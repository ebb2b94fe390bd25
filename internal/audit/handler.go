package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/estate-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Service reads the audit log.
type Service struct {
	store Store
}

// NewService constructs the audit reader.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns entries newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	return s.store.List(ctx, filter)
}

// Handler exposes the audit log endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.ReadRoles...)).Get("/", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{ResourceType: q.Get("resourceType"), RecordID: q.Get("recordId")}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.Fail(w, http.StatusBadRequest, "invalid limit", map[string]string{"limit": "must be a positive integer"})
			return
		}
		filter.Limit = limit
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httpx.OK(w, http.StatusOK, entries)
}
