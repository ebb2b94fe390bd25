package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newGuardedRouter() http.Handler {
	m := Middleware{}
	r := chi.NewRouter()
	r.Use(m.Actor)
	r.With(m.RequireAny(AccountAdminRoles...)).Get("/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func TestRequireAnyRejectsMissingActor(t *testing.T) {
	rec := httptest.NewRecorder()
	newGuardedRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRequireAnyRejectsWrongRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set(HeaderActorID, "u-1")
	req.Header.Set(HeaderActorRole, RoleFinanceUser)
	rec := httptest.NewRecorder()
	newGuardedRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyAcceptsCaseInsensitiveRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set(HeaderActorID, "u-1")
	req.Header.Set(HeaderActorRole, "Finance_Admin")
	rec := httptest.NewRecorder()
	newGuardedRouter().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
