// Package maintenance tracks maintenance requests through finance approval
// and payment.
package maintenance

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Finance statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusPaid     = "paid"
)

// DefaultCategory is used when a request names no category.
const DefaultCategory = "maintenance"

// ResourceType names maintenance requests in audit records.
const ResourceType = "Maintenance"

var (
	// ErrRequestNotFound indicates the request does not exist.
	ErrRequestNotFound = shared.NewError(shared.ErrNotFound, "maintenance: request not found")
	// ErrNotPending indicates the request already left the pending state.
	ErrNotPending = shared.NewError(shared.ErrConflict, "maintenance: request is not pending")
	// ErrNotApproved indicates payment was attempted before approval.
	ErrNotApproved = shared.NewError(shared.ErrConflict, "maintenance: request is not approved")
)

// Request is a maintenance job awaiting or past finance review.
type Request struct {
	ID              int64           `json:"id"`
	RequestNo       string          `json:"requestNo"`
	ResidenceID     string          `json:"residenceId"`
	Title           string          `json:"title"`
	Category        string          `json:"category"`
	Amount          decimal.Decimal `json:"amount"`
	FinanceStatus   string          `json:"financeStatus"`
	PaymentMethod   string          `json:"paymentMethod"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	ApprovedBy      string          `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Ref returns the ledger source reference of the request.
func (r Request) Ref() ledger.SourceRef {
	return ledger.SourceRef{Model: ledger.ModelMaintenance, ID: idString(r.ID)}
}

// CreateInput captures a new request.
type CreateInput struct {
	ResidenceID string          `json:"residenceId" validate:"max=64"`
	Title       string          `json:"title" validate:"required,max=255"`
	Category    string          `json:"category" validate:"max=64"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
}

// RejectInput captures a finance rejection.
type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// PayInput captures payment of an approved request.
type PayInput struct {
	PaymentMethod string `json:"paymentMethod" validate:"required,max=64"`
	PaidAt        string `json:"paidAt" validate:"omitempty,datetime=2006-01-02"`
}

// ListFilter narrows request listings.
type ListFilter struct {
	Status      string
	ResidenceID string
	Limit       int
	Offset      int
}

// Result pairs a request with the transaction a transition posted.
type Result struct {
	Request     Request             `json:"request"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
