package accounts_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
)

func newAccountsRouter() http.Handler {
	guard := rbac.Middleware{}
	h := accounts.NewHandler(nil, accounts.NewService(accountstest.NewSeeded(), nil), guard)
	r := chi.NewRouter()
	r.Use(guard.Actor)
	r.Route("/accounts", h.MountRoutes)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "u-1")
	req.Header.Set(rbac.HeaderActorRole, role)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListByType(t *testing.T) {
	rec := doRequest(t, newAccountsRouter(), http.MethodGet, "/accounts?type=income", rbac.RoleFinanceUser, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool               `json:"success"`
		Data    []accounts.Account `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Len(t, body.Data, 5)
	for _, acc := range body.Data {
		require.Equal(t, accounts.AccountTypeIncome, acc.Type)
	}
}

func TestHandlerCreateValidation(t *testing.T) {
	router := newAccountsRouter()
	rec := doRequest(t, router, http.MethodPost, "/accounts", rbac.RoleAdmin, `{"code":"","name":"x","type":"ASSET"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"is required"`)

	rec = doRequest(t, router, http.MethodPost, "/accounts", rbac.RoleAdmin, `{"code":"1004","name":"Card Terminal","type":"ASSET","category":"bank"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/accounts", rbac.RoleAdmin, `{"code":"1004","name":"Again","type":"ASSET"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerCreateRequiresAccountAdmin(t *testing.T) {
	rec := doRequest(t, newAccountsRouter(), http.MethodPost, "/accounts", rbac.RoleFinanceUser, `{"code":"1005","name":"x","type":"ASSET"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerGetMissing(t *testing.T) {
	rec := doRequest(t, newAccountsRouter(), http.MethodGet, "/accounts/8888", rbac.RoleCEO, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"success":false`)
}
