// Package expenses manages property expenses and their ledger postings.
package expenses

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Payment statuses.
const (
	StatusPending = "Pending"
	StatusPaid    = "Paid"
)

// ResourceType names expenses in audit records.
const ResourceType = "Expense"

var (
	// ErrExpenseNotFound indicates the expense does not exist or was deleted.
	ErrExpenseNotFound = shared.NewError(shared.ErrNotFound, "expenses: expense not found")
	// ErrInvalidStatus indicates the expense is not in a state that allows the operation.
	ErrInvalidStatus = shared.NewError(shared.ErrConflict, "expenses: expense is not pending")
)

// Expense is a cost incurred for a residence.
type Expense struct {
	ID            int64           `json:"id"`
	ExpenseNo     string          `json:"expenseNo"`
	ResidenceID   string          `json:"residenceId"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod"`
	ExpenseDate   time.Time       `json:"expenseDate"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	PaidBy        string          `json:"paidBy,omitempty"`
	Accrued       bool            `json:"accrued"`
	CreatedBy     string          `json:"createdBy"`
	DeletedAt     *time.Time      `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Ref returns the ledger source reference of the expense.
func (e Expense) Ref() ledger.SourceRef {
	return ledger.SourceRef{Model: ledger.ModelExpense, ID: idString(e.ID)}
}

// CreateInput captures a new expense.
type CreateInput struct {
	ResidenceID   string          `json:"residenceId" validate:"max=64"`
	Category      string          `json:"category" validate:"required,max=64"`
	Description   string          `json:"description" validate:"max=255"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentStatus string          `json:"paymentStatus" validate:"omitempty,oneof=Pending Paid"`
	PaymentMethod string          `json:"paymentMethod" validate:"max=64"`
	ExpenseDate   string          `json:"expenseDate" validate:"omitempty,datetime=2006-01-02"`
}

// ApproveInput captures the payment of a pending expense.
type ApproveInput struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,max=64"`
	PaidAt        string `json:"paidAt" validate:"omitempty,datetime=2006-01-02"`
}

// ListFilter narrows expense listings.
type ListFilter struct {
	Status      string
	ResidenceID string
	Category    string
	Limit       int
	Offset      int
}

// Result pairs an expense with the transaction a mutation posted.
type Result struct {
	Expense     Expense            `json:"expense"`
	Transaction ledger.Transaction `json:"transaction"`
}

// DeleteResult reports the ledger rows removed with an expense.
type DeleteResult struct {
	Expense Expense              `json:"expense"`
	Ledger  ledger.CascadeResult `json:"ledger"`
}
