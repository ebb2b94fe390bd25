package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// RespondError maps domain errors to HTTP responses.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var fields shared.FieldErrors
	switch {
	case errors.As(err, &fields):
		Fail(w, http.StatusBadRequest, err.Error(), map[string]string(fields))
	case errors.Is(err, shared.ErrValidation):
		Fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, shared.ErrConflict):
		Fail(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, shared.ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, shared.ErrPosting):
		logError(r, logger, err)
		Fail(w, http.StatusInternalServerError, err.Error(), nil)
	default:
		logError(r, logger, err)
		Fail(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func logError(r *http.Request, logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	attrs := []any{slog.Any("error", err)}
	if r != nil {
		attrs = append(attrs, slog.String("path", r.URL.Path), slog.String("request_id", middleware.GetReqID(r.Context())))
	}
	logger.Error("request failed", attrs...)
}
