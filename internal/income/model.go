// Package income manages other income receipts and refunds.
package income

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Payment statuses.
const (
	StatusPending  = "Pending"
	StatusReceived = "Received"
	StatusRefunded = "Refunded"
)

// ResourceType names other income in audit records.
const ResourceType = "OtherIncome"

var (
	// ErrIncomeNotFound indicates the income record does not exist.
	ErrIncomeNotFound = shared.NewError(shared.ErrNotFound, "income: record not found")
	// ErrNotPending indicates a receipt was attempted on income that is not pending.
	ErrNotPending = shared.NewError(shared.ErrConflict, "income: record is not pending")
	// ErrNotReceived indicates a refund was attempted on income that was not received.
	ErrNotReceived = shared.NewError(shared.ErrConflict, "income: record has not been received")
	// ErrRefundExceeds indicates the refund is larger than the refundable balance.
	ErrRefundExceeds = shared.NewError(shared.ErrValidation, "income: refund exceeds the refundable amount")
)

// OtherIncome is revenue outside the rent roll.
type OtherIncome struct {
	ID             int64           `json:"id"`
	IncomeNo       string          `json:"incomeNo"`
	ResidenceID    string          `json:"residenceId"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	PaymentStatus  string          `json:"paymentStatus"`
	PaymentMethod  string          `json:"paymentMethod"`
	IncomeDate     time.Time       `json:"incomeDate"`
	ReceivedAt     *time.Time      `json:"receivedAt,omitempty"`
	CreatedBy      string          `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Ref returns the ledger source reference of the income.
func (i OtherIncome) Ref() ledger.SourceRef {
	return ledger.SourceRef{Model: ledger.ModelOtherIncome, ID: idString(i.ID)}
}

// Refundable returns the amount still available for refund.
func (i OtherIncome) Refundable() decimal.Decimal {
	return i.Amount.Sub(i.RefundedAmount)
}

// CreateInput captures new income.
type CreateInput struct {
	ResidenceID   string          `json:"residenceId" validate:"max=64"`
	Category      string          `json:"category" validate:"required,max=64"`
	Description   string          `json:"description" validate:"max=255"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentStatus string          `json:"paymentStatus" validate:"omitempty,oneof=Pending Received"`
	PaymentMethod string          `json:"paymentMethod" validate:"max=64"`
	IncomeDate    string          `json:"incomeDate" validate:"omitempty,datetime=2006-01-02"`
}

// ReceiveInput captures the receipt of pending income.
type ReceiveInput struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,max=64"`
	ReceivedAt    string `json:"receivedAt" validate:"omitempty,datetime=2006-01-02"`
}

// RefundInput captures a full or partial refund.
type RefundInput struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMethod string          `json:"paymentMethod" validate:"max=64"`
	Reason        string          `json:"reason" validate:"max=255"`
}

// ListFilter narrows income listings.
type ListFilter struct {
	Status      string
	ResidenceID string
	Category    string
	Limit       int
	Offset      int
}

// Result pairs income with the transaction a mutation posted. Transaction is
// nil when nothing was posted.
type Result struct {
	Income      OtherIncome         `json:"income"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
