// Package ledger stores balanced transactions and their entries and enforces
// the double-entry invariant at a single posting gate.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Source tags describe which business event produced an entry.
const (
	SourceManual             = "manual"
	SourceExpenseAccrual     = "expense_accrual"
	SourceExpensePayment     = "expense_payment"
	SourceExpenseDirect      = "expense_direct"
	SourceMaintenanceAccrual = "maintenance_accrual"
	SourceMaintenancePayment = "maintenance_payment"
	SourceIncomeReceipt      = "income_receipt"
	SourceIncomeRefund       = "income_refund"
)

// Source models referenced by entries.
const (
	ModelExpense     = "Expense"
	ModelOtherIncome = "OtherIncome"
	ModelMaintenance = "Maintenance"
	ModelManual      = "Manual"
)

// StatusPosted is the only entry status written today.
const StatusPosted = "posted"

// SourceRef points an entry back at the business object that produced it.
type SourceRef struct {
	Model string `json:"model"`
	ID    string `json:"id"`
}

// Valid reports whether both parts are present.
func (r SourceRef) Valid() bool {
	return strings.TrimSpace(r.Model) != "" && strings.TrimSpace(r.ID) != ""
}

// Period is a canonical accounting month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Valid reports whether the period names a real month.
func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= 1 && p.Month <= 12
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Transaction groups the balanced entries of one business event.
type Transaction struct {
	ID            int64     `json:"id"`
	TransactionNo string    `json:"transactionNo"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	Reference     string    `json:"reference"`
	ResidenceID   string    `json:"residenceId,omitempty"`
	Type          string    `json:"type"`
	CashMovement  bool      `json:"cashMovement"`
	CreatedBy     string    `json:"createdBy"`
	EntryIDs      []int64   `json:"entryIds"`
	Entries       []Entry   `json:"entries,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Entry is one debit or credit line.
type Entry struct {
	ID            int64                `json:"id"`
	TransactionID int64                `json:"transactionId"`
	TransactionNo string               `json:"transactionNo,omitempty"`
	AccountID     int64                `json:"accountId"`
	AccountCode   string               `json:"accountCode"`
	AccountName   string               `json:"accountName"`
	AccountType   accounts.AccountType `json:"accountType"`
	Debit         decimal.Decimal      `json:"debit"`
	Credit        decimal.Decimal      `json:"credit"`
	Description   string               `json:"description"`
	Source        string               `json:"source"`
	SourceRef     SourceRef            `json:"sourceRef"`
	Status        string               `json:"status"`
	ResidenceID   string               `json:"residenceId,omitempty"`
	Date          time.Time            `json:"date"`
	Period        Period               `json:"period"`
	Metadata      Metadata             `json:"-"`
	CashMovement  bool                 `json:"cashMovement"`
	CreatedAt     time.Time            `json:"createdAt"`
}

// MarshalJSON renders metadata through its tagged envelope.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	meta, err := EncodeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: plain(e), Metadata: meta})
}

// Net returns debit minus credit.
func (e Entry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// PostingLine is one requested line of a posting.
type PostingLine struct {
	Account     accounts.Account
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	Metadata    Metadata
}

// PostingInput groups everything required to write one transaction.
type PostingInput struct {
	Date        time.Time
	Description string
	Reference   string
	ResidenceID string
	Type        string
	CreatedBy   string
	Source      string
	SourceRef   SourceRef
	Lines       []PostingLine
}

var (
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.NewError(shared.ErrValidation, "ledger: a posting requires at least two lines")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = shared.NewError(shared.ErrNotFound, "ledger: transaction not found")
)

// ImbalancedPostingError reports a posting whose debits and credits differ.
type ImbalancedPostingError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *ImbalancedPostingError) Error() string {
	return fmt.Sprintf("ledger: imbalanced posting: debit %s != credit %s", e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// Unwrap classifies imbalances as posting failures.
func (e *ImbalancedPostingError) Unwrap() error {
	return shared.ErrPosting
}

// Validate checks structure, rounds amounts to cents and enforces balance.
func (in *PostingInput) Validate() error {
	if in.Date.IsZero() {
		return shared.FieldErrors{"date": "is required"}
	}
	if strings.TrimSpace(in.Type) == "" {
		return shared.FieldErrors{"type": "is required"}
	}
	if strings.TrimSpace(in.Source) == "" {
		return shared.FieldErrors{"source": "is required"}
	}
	if !in.SourceRef.Valid() {
		return shared.FieldErrors{"sourceRef": "model and id are required"}
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx := range in.Lines {
		line := &in.Lines[idx]
		field := fmt.Sprintf("lines[%d]", idx)
		if line.Account.Code == "" || line.Account.ID == 0 {
			return shared.FieldErrors{field: "account is required"}
		}
		if !line.Account.IsActive {
			return shared.FieldErrors{field: fmt.Sprintf("account %s is inactive", line.Account.Code)}
		}
		line.Debit = shared.Round2(line.Debit)
		line.Credit = shared.Round2(line.Credit)
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.FieldErrors{field: "amounts cannot be negative"}
		}
		if line.Debit.IsZero() == line.Credit.IsZero() {
			return shared.FieldErrors{field: "exactly one of debit or credit must be non-zero"}
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return &ImbalancedPostingError{Debit: debit, Credit: credit}
	}
	return nil
}

// Total returns the debit side of a validated input.
func (in PostingInput) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range in.Lines {
		total = total.Add(line.Debit)
	}
	return total
}

// CascadeResult reports what DeleteCascade removed.
type CascadeResult struct {
	EntriesDeleted      int `json:"entriesDeleted"`
	TransactionsDeleted int `json:"transactionsDeleted"`
}

// StatementFilter narrows the entries read by the statement generator.
// From and To are inclusive calendar dates; zero values are unbounded.
type StatementFilter struct {
	From         time.Time
	To           time.Time
	AccountCodes []string
	ResidenceID  string
	CashOnly     bool
	Periods      []Period
	SourceRef    *SourceRef
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	From        time.Time
	To          time.Time
	ResidenceID string
	Type        string
	SourceRef   *SourceRef
	Limit       int
	Offset      int
}
