package posting_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/posting/postingtest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

func expenseEvent(amount string) posting.Event {
	return posting.Event{
		SourceModel:   ledger.ModelExpense,
		SourceID:      "7",
		Reference:     "EXP-1",
		Description:   "Plumbing",
		Category:      "Maintenance",
		PaymentMethod: "Bank Transfer",
		Amount:        decimal.RequireFromString(amount),
		Date:          time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Actor:         "u-1",
	}
}

func codes(in ledger.PostingInput) (string, string) {
	return in.Lines[0].Account.Code, in.Lines[1].Account.Code
}

func TestExpenseRules(t *testing.T) {
	fx := postingtest.New()
	ctx := context.Background()
	ev := expenseEvent("150.00")

	accrual, err := fx.Rules.ExpenseAccrued(ctx, ev)
	require.NoError(t, err)
	dr, cr := codes(accrual)
	require.Equal(t, "5001", dr)
	require.Equal(t, "2000", cr)
	require.Equal(t, ledger.SourceExpenseAccrual, accrual.Source)
	require.Equal(t, posting.TypeAccrual, accrual.Type)
	require.Equal(t, ledger.AccrualMetadata{Year: 2024, Month: 3, Category: "maintenance"}, accrual.Lines[0].Metadata)

	direct, err := fx.Rules.ExpensePaidDirect(ctx, ev)
	require.NoError(t, err)
	dr, cr = codes(direct)
	require.Equal(t, "5001", dr)
	require.Equal(t, "1001", cr)
	require.Equal(t, ledger.SourceExpenseDirect, direct.Source)

	ev.Date = time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	settle, err := fx.Rules.ExpenseSettled(ctx, ev)
	require.NoError(t, err)
	dr, cr = codes(settle)
	require.Equal(t, "2000", dr)
	require.Equal(t, "1001", cr)
	require.Equal(t, ledger.SettlementMetadata{MonthSettled: "2024-04", SettledAccountCode: "5001", Category: "maintenance"}, settle.Lines[0].Metadata)
	require.Equal(t, ledger.SourceRef{Model: ledger.ModelExpense, ID: "7"}, settle.SourceRef)
}

func TestRulesProduceBalancedPostings(t *testing.T) {
	fx := postingtest.New()
	ctx := context.Background()
	ev := expenseEvent("99.995")
	income := ev
	income.SourceModel = ledger.ModelOtherIncome
	income.Category = "Rental"
	income.PaymentMethod = "Cash"

	builders := map[string]func() (ledger.PostingInput, error){
		"accrual":    func() (ledger.PostingInput, error) { return fx.Rules.ExpenseAccrued(ctx, ev) },
		"direct":     func() (ledger.PostingInput, error) { return fx.Rules.ExpensePaidDirect(ctx, ev) },
		"settlement": func() (ledger.PostingInput, error) { return fx.Rules.ExpenseSettled(ctx, ev) },
		"approval":   func() (ledger.PostingInput, error) { return fx.Rules.MaintenanceApproved(ctx, ev) },
		"mpayment":   func() (ledger.PostingInput, error) { return fx.Rules.MaintenancePaid(ctx, ev) },
		"receipt":    func() (ledger.PostingInput, error) { return fx.Rules.IncomeReceived(ctx, income) },
		"refund":     func() (ledger.PostingInput, error) { return fx.Rules.IncomeRefunded(ctx, income) },
	}
	for name, build := range builders {
		in, err := build()
		require.NoError(t, err, name)
		require.Len(t, in.Lines, 2, name)
		require.NoError(t, in.Validate(), name)
		require.True(t, in.Lines[0].Debit.Equal(in.Lines[1].Credit), name)
		require.Equal(t, "100", in.Total().String(), name)
	}
}

func TestMaintenanceRulesUseWellKnownAccounts(t *testing.T) {
	fx := postingtest.New()
	ctx := context.Background()
	ev := expenseEvent("80")
	ev.SourceModel = ledger.ModelMaintenance
	ev.Category = ""
	ev.PaymentMethod = ""

	approved, err := fx.Rules.MaintenanceApproved(ctx, ev)
	require.NoError(t, err)
	dr, cr := codes(approved)
	require.Equal(t, fx.Registry.Code(resolver.RoleMaintenanceExpense), dr)
	require.Equal(t, "2000", cr)
	require.Equal(t, posting.TypeApproval, approved.Type)

	paid, err := fx.Rules.MaintenancePaid(ctx, ev)
	require.NoError(t, err)
	dr, cr = codes(paid)
	require.Equal(t, "2000", dr)
	require.Equal(t, fx.Registry.Code(resolver.RoleCashDefault), cr)
}

func TestIncomeRules(t *testing.T) {
	fx := postingtest.New()
	ctx := context.Background()
	ev := posting.Event{
		SourceModel:   ledger.ModelOtherIncome,
		SourceID:      "3",
		Category:      "Admin Fees",
		PaymentMethod: "M-Pesa",
		Amount:        decimal.RequireFromString("40"),
		Date:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	receipt, err := fx.Rules.IncomeReceived(ctx, ev)
	require.NoError(t, err)
	dr, cr := codes(receipt)
	require.Equal(t, "1003", dr)
	require.Equal(t, "4200", cr)

	refund, err := fx.Rules.IncomeRefunded(ctx, ev)
	require.NoError(t, err)
	dr, cr = codes(refund)
	require.Equal(t, "4200", dr)
	require.Equal(t, "1003", cr)
	require.Equal(t, posting.TypeRefund, refund.Type)
}

func TestRulesRejectBadInput(t *testing.T) {
	fx := postingtest.New()
	ctx := context.Background()

	ev := expenseEvent("0")
	_, err := fx.Rules.ExpenseAccrued(ctx, ev)
	require.ErrorIs(t, err, shared.ErrValidation)

	ev = expenseEvent("10")
	ev.Category = "Helicopter Rental"
	accrued, err := fx.Rules.ExpenseAccrued(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, "5099", accrued.Lines[0].Account.Code, "unknown categories fall back to miscellaneous")

	fx.Deactivate("5099")
	_, err = fx.Rules.ExpenseAccrued(ctx, ev)
	var resErr *resolver.AccountResolutionError
	require.True(t, errors.As(err, &resErr))
	require.ErrorIs(t, err, shared.ErrPosting)
}
