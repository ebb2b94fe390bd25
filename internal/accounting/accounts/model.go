package accounts

import (
	"strings"
	"time"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeIncome    AccountType = "INCOME"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeIncome, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether balances of this type grow with debits.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// ParseAccountType normalises user input into an AccountType.
func ParseAccountType(raw string) (AccountType, bool) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	if t == "REVENUE" {
		t = AccountTypeIncome
	}
	return t, t.Valid()
}

// Well-known categories.
const (
	CategoryCash       = "cash"
	CategoryBank       = "bank"
	CategoryWallet     = "wallet"
	CategoryReceivable = "receivable"
	CategoryPayable    = "payable"
)

// Account models a chart of accounts node.
type Account struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	Category  string      `json:"category"`
	ParentID  *int64      `json:"parentId,omitempty"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// IsCash reports whether the account holds cash or cash equivalents.
func (a Account) IsCash() bool {
	if a.Type != AccountTypeAsset {
		return false
	}
	switch strings.ToLower(a.Category) {
	case CategoryCash, CategoryBank, CategoryWallet:
		return true
	}
	return false
}

// IsPayable reports whether the account is an accounts payable control account.
func (a Account) IsPayable() bool {
	return a.Type == AccountTypeLiability && strings.EqualFold(a.Category, CategoryPayable)
}

// IsReceivable reports whether the account is an accounts receivable control account.
func (a Account) IsReceivable() bool {
	return a.Type == AccountTypeAsset && strings.EqualFold(a.Category, CategoryReceivable)
}

// ListFilter narrows List results.
type ListFilter struct {
	Type   AccountType
	Active *bool
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Code       string `json:"code" validate:"required,max=20"`
	Name       string `json:"name" validate:"required,max=120"`
	Type       string `json:"type" validate:"required"`
	Category   string `json:"category" validate:"max=40"`
	ParentCode string `json:"parentCode" validate:"max=20"`
}

// UpdateInput carries optional changes to an existing account.
type UpdateInput struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	Type       *string `json:"type"`
	Category   *string `json:"category" validate:"omitempty,max=40"`
	ParentCode *string `json:"parentCode" validate:"omitempty,max=20"`
}

// DeleteResult reports what Delete did to the account.
type DeleteResult struct {
	Code        string `json:"code"`
	Deleted     bool   `json:"deleted"`
	Deactivated bool   `json:"deactivated"`
}
