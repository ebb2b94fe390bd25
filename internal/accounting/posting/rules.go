// Package posting turns business events into balanced ledger postings.
package posting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/resolver"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Transaction types written by the rules.
const (
	TypeAccrual  = "accrual"
	TypePayment  = "payment"
	TypeApproval = "approval"
	TypeReceipt  = "receipt"
	TypeRefund   = "refund"
)

// AccountResolver is the subset of resolver.Resolver the rules need.
type AccountResolver interface {
	ResolvePaymentMethod(ctx context.Context, method string) (accounts.Account, error)
	ResolveExpenseCategory(ctx context.Context, category string) (accounts.Account, error)
	ResolveIncomeCategory(ctx context.Context, category string) (accounts.Account, error)
}

// Event carries the business facts every rule consumes.
type Event struct {
	SourceModel   string
	SourceID      string
	Reference     string
	Description   string
	ResidenceID   string
	Category      string
	PaymentMethod string
	Amount        decimal.Decimal
	Date          time.Time
	// AccrualDate is the date the original liability or revenue was recognised.
	AccrualDate time.Time
	Actor       string
}

func (e Event) ref() ledger.SourceRef {
	return ledger.SourceRef{Model: e.SourceModel, ID: e.SourceID}
}

// ErrInvalidAmount indicates a non-positive business amount.
var ErrInvalidAmount = shared.NewError(shared.ErrValidation, "posting: amount must be greater than zero")

// Rules builds postings for each business event.
type Rules struct {
	resolver AccountResolver
	registry *resolver.Registry
}

// NewRules constructs the rule set.
func NewRules(r AccountResolver, registry *resolver.Registry) *Rules {
	return &Rules{resolver: r, registry: registry}
}

// ExpenseAccrued debits the category expense and credits accounts payable.
func (r *Rules) ExpenseAccrued(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	expense, err := r.resolver.ResolveExpenseCategory(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	ap, err := r.registry.Account(resolver.RoleAPDefault)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := accrualMeta(ev.Date, ev.Category)
	return twoLine(ev, TypeAccrual, ledger.SourceExpenseAccrual, expense, ap, meta, meta)
}

// ExpensePaidDirect debits the category expense and credits the payment account.
func (r *Rules) ExpensePaidDirect(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	expense, err := r.resolver.ResolveExpenseCategory(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	cash, err := r.paymentAccount(ctx, ev.PaymentMethod)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := accrualMeta(ev.Date, ev.Category)
	return twoLine(ev, TypePayment, ledger.SourceExpenseDirect, expense, cash, meta, meta)
}

// ExpenseSettled debits accounts payable and credits the payment account,
// recording the expense account the payment settles.
func (r *Rules) ExpenseSettled(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	expense, err := r.resolver.ResolveExpenseCategory(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	ap, err := r.registry.Account(resolver.RoleAPDefault)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	cash, err := r.paymentAccount(ctx, ev.PaymentMethod)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := settlementMeta(ev.Date, expense.Code, ev.Category)
	return twoLine(ev, TypePayment, ledger.SourceExpensePayment, ap, cash, meta, meta)
}

// MaintenanceApproved debits the maintenance expense and credits accounts payable.
func (r *Rules) MaintenanceApproved(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	expense, err := r.maintenanceAccount(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	ap, err := r.registry.Account(resolver.RoleAPDefault)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := accrualMeta(ev.Date, categoryOr(ev.Category, "maintenance"))
	return twoLine(ev, TypeApproval, ledger.SourceMaintenanceAccrual, expense, ap, meta, meta)
}

// MaintenancePaid settles the maintenance payable from the payment account.
func (r *Rules) MaintenancePaid(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	expense, err := r.maintenanceAccount(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	ap, err := r.registry.Account(resolver.RoleAPDefault)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	cash, err := r.paymentAccount(ctx, ev.PaymentMethod)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := settlementMeta(ev.Date, expense.Code, categoryOr(ev.Category, "maintenance"))
	return twoLine(ev, TypePayment, ledger.SourceMaintenancePayment, ap, cash, meta, meta)
}

// IncomeReceived debits the payment account and credits the category income.
func (r *Rules) IncomeReceived(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	cash, err := r.resolver.ResolvePaymentMethod(ctx, ev.PaymentMethod)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	income, err := r.resolver.ResolveIncomeCategory(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := accrualMeta(ev.Date, ev.Category)
	return twoLine(ev, TypeReceipt, ledger.SourceIncomeReceipt, cash, income, meta, meta)
}

// IncomeRefunded debits the category income and credits the payment account.
func (r *Rules) IncomeRefunded(ctx context.Context, ev Event) (ledger.PostingInput, error) {
	income, err := r.resolver.ResolveIncomeCategory(ctx, ev.Category)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	cash, err := r.resolver.ResolvePaymentMethod(ctx, ev.PaymentMethod)
	if err != nil {
		return ledger.PostingInput{}, err
	}
	meta := settlementMeta(ev.Date, income.Code, ev.Category)
	return twoLine(ev, TypeRefund, ledger.SourceIncomeRefund, income, cash, meta, meta)
}

func (r *Rules) paymentAccount(ctx context.Context, method string) (accounts.Account, error) {
	if strings.TrimSpace(method) == "" {
		return r.registry.Account(resolver.RoleCashDefault)
	}
	return r.resolver.ResolvePaymentMethod(ctx, method)
}

func (r *Rules) maintenanceAccount(ctx context.Context, category string) (accounts.Account, error) {
	switch resolver.NormalizeKey(category) {
	case "", "maintenance":
		return r.registry.Account(resolver.RoleMaintenanceExpense)
	}
	return r.resolver.ResolveExpenseCategory(ctx, category)
}

func twoLine(ev Event, txType, source string, debit, credit accounts.Account, debitMeta, creditMeta ledger.Metadata) (ledger.PostingInput, error) {
	amount := shared.Round2(ev.Amount)
	if !amount.IsPositive() {
		return ledger.PostingInput{}, ErrInvalidAmount
	}
	if ev.Date.IsZero() {
		return ledger.PostingInput{}, fmt.Errorf("posting: %s event date required: %w", source, shared.ErrValidation)
	}
	return ledger.PostingInput{
		Date:        ev.Date,
		Description: ev.Description,
		Reference:   ev.Reference,
		ResidenceID: ev.ResidenceID,
		Type:        txType,
		CreatedBy:   ev.Actor,
		Source:      source,
		SourceRef:   ev.ref(),
		Lines: []ledger.PostingLine{
			{Account: debit, Debit: amount, Metadata: debitMeta},
			{Account: credit, Credit: amount, Metadata: creditMeta},
		},
	}, nil
}

func accrualMeta(date time.Time, category string) ledger.Metadata {
	return ledger.AccrualMetadata{Year: date.Year(), Month: int(date.Month()), Category: strings.ToLower(strings.TrimSpace(category))}
}

func settlementMeta(date time.Time, settledCode, category string) ledger.Metadata {
	return ledger.SettlementMetadata{
		MonthSettled:       date.Format("2006-01"),
		SettledAccountCode: settledCode,
		Category:           strings.ToLower(strings.TrimSpace(category)),
	}
}

func categoryOr(category, fallback string) string {
	if strings.TrimSpace(category) == "" {
		return fallback
	}
	return category
}
