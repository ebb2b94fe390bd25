// Package reports builds financial statements from ledger entries. Builders
// are pure: callers load the chart and entries and pass them in.
package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Basis selects which entries a statement recognises.
type Basis string

const (
	BasisAccrual Basis = "accrual"
	BasisCash    Basis = "cash"
)

// ErrInvalidBasis is returned for anything other than cash or accrual.
var ErrInvalidBasis = shared.NewError(shared.ErrValidation, "reports: basis must be cash or accrual")

// ParseBasis defaults to accrual.
func ParseBasis(raw string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BasisAccrual:
		return BasisAccrual, nil
	case BasisCash:
		return BasisCash, nil
	}
	return "", ErrInvalidBasis
}

// AccountBalance models a ledger account with aggregated movements.
type AccountBalance struct {
	Code   string
	Name   string
	Type   accounts.AccountType
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Closing computes the balance on the account's normal side.
func (a AccountBalance) Closing() decimal.Decimal {
	if a.Type.DebitNormal() {
		return a.Debit.Sub(a.Credit)
	}
	return a.Credit.Sub(a.Debit)
}

// Chart indexes the accounts a statement is built against.
type Chart struct {
	all         []accounts.Account
	byCode      map[string]accounts.Account
	miscExpense string
}

// NewChart indexes all. miscExpenseCode receives cash-basis settlements whose
// settled account is unknown.
func NewChart(all []accounts.Account, miscExpenseCode string) Chart {
	byCode := make(map[string]accounts.Account, len(all))
	for _, acc := range all {
		byCode[acc.Code] = acc
	}
	return Chart{all: all, byCode: byCode, miscExpense: miscExpenseCode}
}

// Lookup returns the account stored under code.
func (c Chart) Lookup(code string) (accounts.Account, bool) {
	acc, ok := c.byCode[code]
	return acc, ok
}

// Descendants returns code and every account code below it.
func (c Chart) Descendants(code string) []string {
	return accounts.DescendantCodes(c.all, code)
}

func (c Chart) sorted() []accounts.Account {
	out := append([]accounts.Account(nil), c.all...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (c Chart) accountOf(e ledger.Entry) accounts.Account {
	if acc, ok := c.byCode[e.AccountCode]; ok {
		return acc
	}
	return accounts.Account{Code: e.AccountCode, Name: e.AccountName, Type: e.AccountType}
}

// recognise returns the account an entry counts against under basis. On the
// cash basis a settlement line on a payable is attributed to the account it
// settled.
func (c Chart) recognise(e ledger.Entry, basis Basis) accounts.Account {
	acc := c.accountOf(e)
	if basis != BasisCash || !acc.IsPayable() {
		return acc
	}
	meta, ok := e.Metadata.(ledger.SettlementMetadata)
	if !ok {
		return acc
	}
	if settled, ok := c.byCode[meta.SettledAccountCode]; ok && settled.Type == accounts.AccountTypeExpense {
		return settled
	}
	if misc, ok := c.byCode[c.miscExpense]; ok {
		return misc
	}
	return acc
}

// Aggregate sums debits and credits per account code, sorted by code.
func Aggregate(chart Chart, entries []ledger.Entry) []AccountBalance {
	byCode := make(map[string]*AccountBalance)
	for _, e := range entries {
		acc := chart.accountOf(e)
		bal, ok := byCode[acc.Code]
		if !ok {
			bal = &AccountBalance{Code: acc.Code, Name: acc.Name, Type: acc.Type, Debit: decimal.Zero, Credit: decimal.Zero}
			byCode[acc.Code] = bal
		}
		bal.Debit = bal.Debit.Add(e.Debit)
		bal.Credit = bal.Credit.Add(e.Credit)
	}
	out := make([]AccountBalance, 0, len(byCode))
	for _, bal := range byCode {
		out = append(out, *bal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
