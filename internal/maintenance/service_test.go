package maintenance_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting/postingtest"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	"github.com/odyssey-erp/estate-ledger/internal/audit/audittest"
	"github.com/odyssey-erp/estate-ledger/internal/maintenance"
	"github.com/odyssey-erp/estate-ledger/internal/maintenance/maintenancetest"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

type fixture struct {
	chart   postingtest.Fixture
	book    *ledgertest.Book
	audit   *audittest.Store
	service *maintenance.Service
}

func newFixture() fixture {
	fx := postingtest.New()
	book := ledgertest.NewBook()
	store := audittest.NewStore()
	svc := maintenance.NewService(maintenancetest.New(book), ledger.NewService(book), fx.Rules, audit.NewStoreRecorder(store, nil), nil)
	return fixture{chart: fx, book: book, audit: store, service: svc}
}

func actorCtx() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: "fin-1", Role: rbac.RoleFinanceAdmin})
}

func create(t *testing.T, fx fixture, category string) maintenance.Request {
	t.Helper()
	req, err := fx.service.Create(actorCtx(), maintenance.CreateInput{Title: "Leaking tap", Category: category, Amount: decimal.RequireFromString("80")})
	require.NoError(t, err)
	return req
}

func TestApproveThenPay(t *testing.T) {
	fx := newFixture()
	req := create(t, fx, "")
	require.Equal(t, maintenance.DefaultCategory, req.Category)
	require.Equal(t, maintenance.StatusPending, req.FinanceStatus)
	require.True(t, strings.HasPrefix(req.RequestNo, "MNT-"))
	require.Empty(t, fx.book.Transactions())

	_, err := fx.service.Pay(actorCtx(), req.ID, maintenance.PayInput{PaymentMethod: "Cash"})
	require.ErrorIs(t, err, maintenance.ErrNotApproved)

	approved, err := fx.service.FinanceApprove(actorCtx(), req.ID)
	require.NoError(t, err)
	require.Equal(t, maintenance.StatusApproved, approved.Request.FinanceStatus)
	require.Equal(t, "fin-1", approved.Request.ApprovedBy)
	require.NotNil(t, approved.Request.ApprovedAt)
	require.Equal(t, "5001", approved.Transaction.Entries[0].AccountCode)
	require.Equal(t, "2000", approved.Transaction.Entries[1].AccountCode)
	require.Equal(t, ledger.SourceMaintenanceAccrual, approved.Transaction.Entries[0].Source)

	_, err = fx.service.FinanceApprove(actorCtx(), req.ID)
	require.ErrorIs(t, err, maintenance.ErrNotPending)

	paid, err := fx.service.Pay(actorCtx(), req.ID, maintenance.PayInput{PaymentMethod: "Bank Transfer", PaidAt: "2024-07-09"})
	require.NoError(t, err)
	require.Equal(t, maintenance.StatusPaid, paid.Request.FinanceStatus)
	require.Equal(t, "2000", paid.Transaction.Entries[0].AccountCode)
	require.Equal(t, "1001", paid.Transaction.Entries[1].AccountCode)
	require.Equal(t, ledger.SettlementMetadata{MonthSettled: "2024-07", SettledAccountCode: "5001", Category: "maintenance"},
		paid.Transaction.Entries[0].Metadata)
	require.True(t, fx.book.BalanceOf("2000").IsZero())

	actions := []string{}
	for _, e := range fx.audit.Entries() {
		actions = append(actions, e.Action)
	}
	require.Equal(t, []string{audit.ActionCreate, audit.ActionApprove, audit.ActionPay}, actions)
}

func TestApproveUsesCategoryAccount(t *testing.T) {
	fx := newFixture()
	req := create(t, fx, "Cleaning")
	approved, err := fx.service.FinanceApprove(actorCtx(), req.ID)
	require.NoError(t, err)
	require.Equal(t, "5004", approved.Transaction.Entries[0].AccountCode)
}

func TestRejectOnlyFromPending(t *testing.T) {
	fx := newFixture()
	req := create(t, fx, "")

	_, err := fx.service.Reject(actorCtx(), req.ID, maintenance.RejectInput{})
	var fields shared.FieldErrors
	require.ErrorAs(t, err, &fields)

	res, err := fx.service.Reject(actorCtx(), req.ID, maintenance.RejectInput{Reason: "duplicate"})
	require.NoError(t, err)
	require.Nil(t, res.Transaction)
	require.Equal(t, maintenance.StatusRejected, res.Request.FinanceStatus)
	require.Equal(t, "duplicate", res.Request.RejectionReason)

	_, err = fx.service.FinanceApprove(actorCtx(), req.ID)
	require.ErrorIs(t, err, maintenance.ErrNotPending)
	require.Empty(t, fx.book.Transactions())
}

func TestPayRollsBackOnUnknownMethod(t *testing.T) {
	fx := newFixture()
	req := create(t, fx, "")
	_, err := fx.service.FinanceApprove(actorCtx(), req.ID)
	require.NoError(t, err)
	audits := len(fx.audit.Entries())
	fx.chart.Deactivate(postingtest.PaymentCodes...)

	_, err = fx.service.Pay(actorCtx(), req.ID, maintenance.PayInput{PaymentMethod: "Bank Transfer"})
	require.ErrorIs(t, err, shared.ErrPosting)
	stored, err := fx.service.Get(context.Background(), req.ID)
	require.NoError(t, err)
	require.Equal(t, maintenance.StatusApproved, stored.FinanceStatus)
	require.Empty(t, stored.PaymentMethod)
	require.Len(t, fx.book.Transactions(), 1)
	require.Len(t, fx.audit.Entries(), audits)
}

func doRequest(h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "fin-1")
	req.Header.Set(rbac.HeaderActorRole, role)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRoutes(t *testing.T) {
	guard := rbac.Middleware{}
	router := chi.NewRouter()
	router.Use(guard.Actor)
	router.Route("/maintenance", maintenance.NewHandler(nil, newFixture().service, guard).MountRoutes)

	rec := doRequest(router, http.MethodPost, "/maintenance", rbac.RoleFinance, `{"title":"Roof","amount":250}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodPatch, "/maintenance/1/pay", rbac.RoleFinance, `{"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodPatch, "/maintenance/1/finance-approve", rbac.RoleFinance, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"financeStatus":"approved"`)

	rec = doRequest(router, http.MethodPatch, "/maintenance/1/pay", rbac.RoleFinance, `{"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodPatch, "/maintenance/1/reject", rbac.RoleFinance, `{"reason":"late"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodGet, "/maintenance?status=paid", rbac.RoleCEO, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = doRequest(router, http.MethodPost, "/maintenance", "", `{"title":"Roof","amount":250}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
