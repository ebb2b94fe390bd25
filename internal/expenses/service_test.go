package expenses_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting/postingtest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
	"github.com/odyssey-erp/estate-ledger/internal/audit"
	"github.com/odyssey-erp/estate-ledger/internal/audit/audittest"
	"github.com/odyssey-erp/estate-ledger/internal/expenses"
	"github.com/odyssey-erp/estate-ledger/internal/expenses/expensestest"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

type fixture struct {
	chart   postingtest.Fixture
	book    *ledgertest.Book
	repo    *expensestest.Repository
	audit   *audittest.Store
	service *expenses.Service
}

func newFixture() fixture {
	fx := postingtest.New()
	book := ledgertest.NewBook()
	repo := expensestest.New(book)
	store := audittest.NewStore()
	svc := expenses.NewService(repo, ledger.NewService(book), fx.Rules, audit.NewStoreRecorder(store, nil), nil)
	return fixture{chart: fx, book: book, repo: repo, audit: store, service: svc}
}

func actorCtx() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: "u-1", Role: rbac.RoleFinance})
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type line struct {
	code   string
	debit  string
	credit string
}

func requireLines(t *testing.T, tx ledger.Transaction, want ...line) {
	t.Helper()
	require.Len(t, tx.Entries, len(want))
	for i, w := range want {
		e := tx.Entries[i]
		require.Equal(t, w.code, e.AccountCode, "line %d", i)
		require.True(t, money(w.debit).Equal(e.Debit), "line %d debit %s", i, e.Debit)
		require.True(t, money(w.credit).Equal(e.Credit), "line %d credit %s", i, e.Credit)
	}
}

func createPending(t *testing.T, fx fixture) expenses.Result {
	t.Helper()
	res, err := fx.service.Create(actorCtx(), expenses.CreateInput{
		Category:      "Maintenance",
		Amount:        money("100"),
		PaymentStatus: expenses.StatusPending,
		ExpenseDate:   "2024-03-12",
	})
	require.NoError(t, err)
	return res
}

func TestCreatePendingAccruesPayable(t *testing.T) {
	fx := newFixture()
	res := createPending(t, fx)

	require.True(t, res.Expense.Accrued)
	require.Equal(t, expenses.StatusPending, res.Expense.PaymentStatus)
	require.True(t, strings.HasPrefix(res.Expense.ExpenseNo, "EXP-"))
	require.Len(t, fx.book.Transactions(), 1)
	require.Len(t, fx.book.Entries(), 2)
	requireLines(t, res.Transaction, line{"5001", "100", "0"}, line{"2000", "0", "100"})
	require.Equal(t, ledger.SourceRef{Model: ledger.ModelExpense, ID: "1"}, res.Transaction.Entries[0].SourceRef)
	require.Equal(t, ledger.Period{Year: 2024, Month: 3}, res.Transaction.Entries[0].Period)

	entries := fx.audit.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, audit.ActionCreate, entries[0].Action)
	require.Equal(t, "u-1", entries[0].ActorID)
}

func TestCreatePaidPostsDirect(t *testing.T) {
	fx := newFixture()
	res, err := fx.service.Create(actorCtx(), expenses.CreateInput{
		Category:      "Utilities",
		Amount:        money("42.50"),
		PaymentStatus: expenses.StatusPaid,
		PaymentMethod: "Bank Transfer",
	})
	require.NoError(t, err)
	require.False(t, res.Expense.Accrued)
	require.NotNil(t, res.Expense.PaidAt)
	require.Equal(t, "u-1", res.Expense.PaidBy)
	requireLines(t, res.Transaction, line{"5002", "42.50", "0"}, line{"1001", "0", "42.50"})
	require.True(t, res.Transaction.CashMovement)
}

func TestCreatePaidRequiresMethod(t *testing.T) {
	fx := newFixture()
	_, err := fx.service.Create(actorCtx(), expenses.CreateInput{Category: "Utilities", Amount: money("1"), PaymentStatus: expenses.StatusPaid})
	var fields shared.FieldErrors
	require.ErrorAs(t, err, &fields)
	require.Contains(t, fields, "paymentMethod")
	require.Empty(t, fx.book.Transactions())
}

func TestApproveSettlesAccrual(t *testing.T) {
	fx := newFixture()
	created := createPending(t, fx)

	res, err := fx.service.Approve(actorCtx(), created.Expense.ID, expenses.ApproveInput{PaymentMethod: "Cash", PaidAt: "2024-04-02"})
	require.NoError(t, err)
	require.Equal(t, expenses.StatusPaid, res.Expense.PaymentStatus)
	require.Equal(t, "Cash", res.Expense.PaymentMethod)
	requireLines(t, res.Transaction, line{"2000", "100", "0"}, line{"1000", "0", "100"})
	require.True(t, fx.book.BalanceOf("2000").IsZero())
	require.Equal(t, ledger.SettlementMetadata{MonthSettled: "2024-04", SettledAccountCode: "5001", Category: "maintenance"},
		res.Transaction.Entries[0].Metadata)

	entries := fx.audit.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, audit.ActionApprove, entries[1].Action)
	require.NotNil(t, entries[1].Before)

	_, err = fx.service.Approve(actorCtx(), created.Expense.ID, expenses.ApproveInput{PaymentMethod: "Cash"})
	require.ErrorIs(t, err, expenses.ErrInvalidStatus)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestApproveRollsBackWhenPostingFails(t *testing.T) {
	fx := newFixture()
	created := createPending(t, fx)
	fx.chart.Deactivate(postingtest.PaymentCodes...)

	_, err := fx.service.Approve(actorCtx(), created.Expense.ID, expenses.ApproveInput{PaymentMethod: "Bank Transfer"})
	var resErr *resolver.AccountResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, resolver.KindPaymentMethod, resErr.Kind)
	require.ErrorIs(t, err, shared.ErrPosting)

	stored, err := fx.service.Get(context.Background(), created.Expense.ID)
	require.NoError(t, err)
	require.Equal(t, expenses.StatusPending, stored.PaymentStatus)
	require.Empty(t, stored.PaymentMethod)
	require.Len(t, fx.book.Transactions(), 1)
	require.Len(t, fx.book.Entries(), 2)
	require.Len(t, fx.audit.Entries(), 1)
}

func TestApproveRollsBackWhenEntriesFail(t *testing.T) {
	fx := newFixture()
	created := createPending(t, fx)

	fx.book.FailInsertEntries = errors.New("disk full")
	_, err := fx.service.Approve(actorCtx(), created.Expense.ID, expenses.ApproveInput{PaymentMethod: "Cash"})
	require.ErrorContains(t, err, "disk full")

	stored, err := fx.service.Get(context.Background(), created.Expense.ID)
	require.NoError(t, err)
	require.Equal(t, expenses.StatusPending, stored.PaymentStatus)
	require.Len(t, fx.book.Transactions(), 1)
	require.Len(t, fx.book.Entries(), 2)
	require.Len(t, fx.audit.Entries(), 1)

	fx.book.FailInsertEntries = nil
	res, err := fx.service.Approve(actorCtx(), created.Expense.ID, expenses.ApproveInput{PaymentMethod: "Cash"})
	require.NoError(t, err)
	require.Equal(t, expenses.StatusPaid, res.Expense.PaymentStatus)
	require.Len(t, fx.book.Transactions(), 2)
}

func TestCreateRollsBackOnUnknownCategory(t *testing.T) {
	fx := newFixture()
	fx.chart.Deactivate("5099")
	_, err := fx.service.Create(actorCtx(), expenses.CreateInput{Category: "Helicopter Rental", Amount: money("10")})
	require.ErrorIs(t, err, shared.ErrPosting)
	items, total, err := fx.service.List(context.Background(), expenses.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, items)
	require.Zero(t, total)
	require.Empty(t, fx.book.Entries())
	require.Empty(t, fx.audit.Entries())
}

func TestDeleteCascadesLedger(t *testing.T) {
	fx := newFixture()
	created := createPending(t, fx)
	_, err := fx.service.Approve(actorCtx(), created.Expense.ID, expenses.ApproveInput{PaymentMethod: "Cash"})
	require.NoError(t, err)

	res, err := fx.service.Delete(actorCtx(), created.Expense.ID)
	require.NoError(t, err)
	require.Equal(t, ledger.CascadeResult{EntriesDeleted: 4, TransactionsDeleted: 2}, res.Ledger)
	require.Empty(t, fx.book.Entries())
	require.Empty(t, fx.book.Transactions())

	_, err = fx.service.Get(context.Background(), created.Expense.ID)
	require.ErrorIs(t, err, expenses.ErrExpenseNotFound)
	raw, ok := fx.repo.Raw(created.Expense.ID)
	require.True(t, ok)
	require.NotNil(t, raw.DeletedAt)

	entries := fx.audit.Entries()
	last := entries[len(entries)-1]
	require.Equal(t, audit.ActionDelete, last.Action)
	require.Equal(t, ledger.CascadeResult{EntriesDeleted: 4, TransactionsDeleted: 2}, last.Details)
}

func TestListFiltersAndPaginates(t *testing.T) {
	fx := newFixture()
	for i := 0; i < 3; i++ {
		createPending(t, fx)
	}
	_, err := fx.service.Create(actorCtx(), expenses.CreateInput{
		Category: "Utilities", Amount: money("5"), PaymentStatus: expenses.StatusPaid, PaymentMethod: "Cash",
		ExpenseDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
	})
	require.NoError(t, err)

	items, total, err := fx.service.List(context.Background(), expenses.ListFilter{Status: expenses.StatusPending, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 2)

	items, total, err = fx.service.List(context.Background(), expenses.ListFilter{Category: "utilities"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Utilities", items[0].Category)
}

func newRouter(fx fixture) http.Handler {
	guard := rbac.Middleware{}
	r := chi.NewRouter()
	r.Use(guard.Actor)
	r.Route("/expenses", expenses.NewHandler(nil, fx.service, guard).MountRoutes)
	return r
}

func doRequest(h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "u-1")
	req.Header.Set(rbac.HeaderActorRole, role)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerLifecycle(t *testing.T) {
	fx := newFixture()
	router := newRouter(fx)

	rec := doRequest(router, http.MethodPost, "/expenses", rbac.RoleFinance, `{"category":"Maintenance","amount":100,"paymentStatus":"Pending"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"success":true`)

	rec = doRequest(router, http.MethodPatch, "/expenses/1/approve", rbac.RoleFinanceAdmin, `{"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodPatch, "/expenses/1/approve", rbac.RoleFinanceAdmin, `{"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodGet, "/expenses?status=Paid", rbac.RoleCEO, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = doRequest(router, http.MethodDelete, "/expenses/1", rbac.RoleFinance, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"entriesDeleted":4`)

	rec = doRequest(router, http.MethodGet, "/expenses/1", rbac.RoleFinance, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRejects(t *testing.T) {
	router := newRouter(newFixture())

	rec := doRequest(router, http.MethodPost, "/expenses", rbac.RoleFinance, `{"category":"","amount":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"category"`)

	rec = doRequest(router, http.MethodPost, "/expenses", rbac.RoleCEO, `{"category":"Maintenance","amount":10}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodGet, "/expenses/abc", rbac.RoleFinance, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
