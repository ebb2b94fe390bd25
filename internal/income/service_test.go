package income_test

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
	"github.com/odyssey-erp/estate-ledger/internal/income"
	"github.com/odyssey-erp/estate-ledger/internal/income/incometest"
	"github.com/odyssey-erp/estate-ledger/internal/rbac"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

type fixture struct {
	chart   postingtest.Fixture
	book    *ledgertest.Book
	audit   *audittest.Store
	service *income.Service
}

func newFixture() fixture {
	fx := postingtest.New()
	book := ledgertest.NewBook()
	store := audittest.NewStore()
	svc := income.NewService(incometest.New(book), ledger.NewService(book), fx.Rules, audit.NewStoreRecorder(store, nil), nil)
	return fixture{chart: fx, book: book, audit: store, service: svc}
}

func actorCtx() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: "u-2", Role: rbac.RoleFinanceUser})
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCreateReceivedPostsReceipt(t *testing.T) {
	fx := newFixture()
	res, err := fx.service.Create(actorCtx(), income.CreateInput{
		Category:      "Rental",
		Amount:        money("50"),
		PaymentStatus: income.StatusReceived,
		PaymentMethod: "Bank Transfer",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	require.True(t, strings.HasPrefix(res.Income.IncomeNo, "INC-"))

	lines := res.Transaction.Entries
	require.Len(t, lines, 2)
	require.Equal(t, "1001", lines[0].AccountCode)
	require.True(t, money("50").Equal(lines[0].Debit))
	require.Equal(t, "4000", lines[1].AccountCode)
	require.True(t, money("50").Equal(lines[1].Credit))
	require.Equal(t, ledger.SourceIncomeReceipt, lines[0].Source)
	require.True(t, res.Transaction.CashMovement)
}

func TestCreatePendingDoesNotPost(t *testing.T) {
	fx := newFixture()
	res, err := fx.service.Create(actorCtx(), income.CreateInput{Category: "Admin Fees", Amount: money("20")})
	require.NoError(t, err)
	require.Nil(t, res.Transaction)
	require.Equal(t, income.StatusPending, res.Income.PaymentStatus)
	require.Empty(t, fx.book.Transactions())

	_, err = fx.service.Create(actorCtx(), income.CreateInput{Category: "Admin Fees", Amount: money("20"), PaymentStatus: income.StatusReceived})
	var fields shared.FieldErrors
	require.ErrorAs(t, err, &fields)
}

func TestReceivePending(t *testing.T) {
	fx := newFixture()
	created, err := fx.service.Create(actorCtx(), income.CreateInput{Category: "Admin Fees", Amount: money("20")})
	require.NoError(t, err)

	res, err := fx.service.Receive(actorCtx(), created.Income.ID, income.ReceiveInput{PaymentMethod: "M-Pesa", ReceivedAt: "2024-06-03"})
	require.NoError(t, err)
	require.Equal(t, income.StatusReceived, res.Income.PaymentStatus)
	require.Equal(t, "1003", res.Transaction.Entries[0].AccountCode)
	require.Equal(t, "4200", res.Transaction.Entries[1].AccountCode)
	require.Equal(t, ledger.Period{Year: 2024, Month: 6}, res.Transaction.Entries[0].Period)

	_, err = fx.service.Receive(actorCtx(), created.Income.ID, income.ReceiveInput{PaymentMethod: "Cash"})
	require.ErrorIs(t, err, income.ErrNotPending)

	entries := fx.audit.Entries()
	require.Equal(t, audit.ActionReceive, entries[len(entries)-1].Action)
}

func TestRefundPartialThenFull(t *testing.T) {
	fx := newFixture()
	created, err := fx.service.Create(actorCtx(), income.CreateInput{
		Category: "Rental", Amount: money("50"), PaymentStatus: income.StatusReceived, PaymentMethod: "Bank Transfer",
	})
	require.NoError(t, err)
	id := created.Income.ID

	res, err := fx.service.Refund(actorCtx(), id, income.RefundInput{Amount: money("20"), Reason: "overpaid"})
	require.NoError(t, err)
	require.Equal(t, income.StatusReceived, res.Income.PaymentStatus)
	require.True(t, money("20").Equal(res.Income.RefundedAmount))
	require.Equal(t, "4000", res.Transaction.Entries[0].AccountCode)
	require.Equal(t, "1001", res.Transaction.Entries[1].AccountCode)
	require.Equal(t, ledger.SourceIncomeRefund, res.Transaction.Entries[0].Source)

	_, err = fx.service.Refund(actorCtx(), id, income.RefundInput{Amount: money("30.01")})
	require.ErrorIs(t, err, income.ErrRefundExceeds)
	require.ErrorIs(t, err, shared.ErrValidation)

	res, err = fx.service.Refund(actorCtx(), id, income.RefundInput{Amount: money("30"), PaymentMethod: "Cash"})
	require.NoError(t, err)
	require.Equal(t, income.StatusRefunded, res.Income.PaymentStatus)
	require.Equal(t, "1000", res.Transaction.Entries[1].AccountCode)
	require.True(t, fx.book.BalanceOf("4000").IsZero())

	_, err = fx.service.Refund(actorCtx(), id, income.RefundInput{Amount: money("1")})
	require.ErrorIs(t, err, income.ErrNotReceived)
	require.Len(t, fx.book.Transactions(), 3)
}

func TestRefundRollsBackOnUnknownMethod(t *testing.T) {
	fx := newFixture()
	created, err := fx.service.Create(actorCtx(), income.CreateInput{
		Category: "Rental", Amount: money("50"), PaymentStatus: income.StatusReceived, PaymentMethod: "Cash",
	})
	require.NoError(t, err)
	audits := len(fx.audit.Entries())
	fx.chart.Deactivate(postingtest.PaymentCodes...)

	_, err = fx.service.Refund(actorCtx(), created.Income.ID, income.RefundInput{Amount: money("10"), PaymentMethod: "Bank Transfer"})
	require.ErrorIs(t, err, shared.ErrPosting)
	stored, err := fx.service.Get(context.Background(), created.Income.ID)
	require.NoError(t, err)
	require.True(t, stored.RefundedAmount.IsZero())
	require.Equal(t, income.StatusReceived, stored.PaymentStatus)
	require.Len(t, fx.book.Transactions(), 1)
	require.Len(t, fx.book.Entries(), 2)
	require.Len(t, fx.audit.Entries(), audits)
}

func doRequest(h http.Handler, method, path, role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "u-2")
	req.Header.Set(rbac.HeaderActorRole, role)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerFlow(t *testing.T) {
	guard := rbac.Middleware{}
	router := chi.NewRouter()
	router.Use(guard.Actor)
	router.Route("/income", income.NewHandler(nil, newFixture().service, guard).MountRoutes)

	rec := doRequest(router, http.MethodPost, "/income", rbac.RoleFinance, `{"category":"Rental","amount":50}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodPost, "/income/1/refund", rbac.RoleFinance, `{"amount":5}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(router, http.MethodPatch, "/income/1/receive", rbac.RoleFinance, `{"paymentMethod":"Bank Transfer"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, http.MethodPost, "/income/1/refund", rbac.RoleFinance, `{"amount":500}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodGet, "/income?status=Received", rbac.RoleCEO, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	rec = doRequest(router, http.MethodPatch, "/income/1/receive", rbac.RoleCEO, `{"paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodGet, "/income/9", rbac.RoleFinance, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
