package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
)

// TrialBalanceRow is one account of the trial balance.
type TrialBalanceRow struct {
	Code          string               `json:"code"`
	Name          string               `json:"name"`
	Type          accounts.AccountType `json:"type"`
	Debit         decimal.Decimal      `json:"debit"`
	Credit        decimal.Decimal      `json:"credit"`
	Balance       decimal.Decimal      `json:"balance"`
	BalanceDebit  decimal.Decimal      `json:"balanceDebit"`
	BalanceCredit decimal.Decimal      `json:"balanceCredit"`
}

// TrialBalanceGroup aggregates the rows of one account type.
type TrialBalanceGroup struct {
	Type   accounts.AccountType `json:"type"`
	Rows   []TrialBalanceRow    `json:"rows"`
	Debit  decimal.Decimal      `json:"debit"`
	Credit decimal.Decimal      `json:"credit"`
}

// TrialBalance lists gross movements per account up to AsOf.
type TrialBalance struct {
	AsOf        time.Time           `json:"asOf"`
	Basis       Basis               `json:"basis"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"totalDebit"`
	TotalCredit decimal.Decimal     `json:"totalCredit"`
	Balanced    bool                `json:"balanced"`
}

var typeOrder = []accounts.AccountType{
	accounts.AccountTypeAsset,
	accounts.AccountTypeLiability,
	accounts.AccountTypeEquity,
	accounts.AccountTypeIncome,
	accounts.AccountTypeExpense,
}

// BuildTrialBalance groups every active account, plus any inactive account
// with movements, by type. Entries must already be limited to AsOf and basis.
func BuildTrialBalance(chart Chart, entries []ledger.Entry, asOf time.Time, basis Basis) TrialBalance {
	moved := make(map[string]AccountBalance)
	for _, bal := range Aggregate(chart, entries) {
		moved[bal.Code] = bal
	}
	rowsByType := make(map[accounts.AccountType][]TrialBalanceRow)
	seen := make(map[string]struct{})
	add := func(bal AccountBalance) {
		seen[bal.Code] = struct{}{}
		rowsByType[bal.Type] = append(rowsByType[bal.Type], trialRow(bal))
	}
	for _, acc := range chart.sorted() {
		bal, ok := moved[acc.Code]
		if !ok {
			if !acc.IsActive {
				continue
			}
			bal = AccountBalance{Code: acc.Code, Name: acc.Name, Type: acc.Type, Debit: decimal.Zero, Credit: decimal.Zero}
		}
		add(bal)
	}
	for _, bal := range Aggregate(chart, entries) {
		if _, ok := seen[bal.Code]; !ok {
			add(bal)
		}
	}

	result := TrialBalance{AsOf: asOf, Basis: basis, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, t := range typeOrder {
		rows := rowsByType[t]
		if len(rows) == 0 {
			continue
		}
		grp := TrialBalanceGroup{Type: t, Rows: rows, Debit: decimal.Zero, Credit: decimal.Zero}
		for _, row := range rows {
			grp.Debit = grp.Debit.Add(row.Debit)
			grp.Credit = grp.Credit.Add(row.Credit)
		}
		result.Groups = append(result.Groups, grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.Balanced = result.TotalDebit.Equal(result.TotalCredit)
	return result
}

// Row returns the row for code, if present.
func (tb TrialBalance) Row(code string) (TrialBalanceRow, bool) {
	for _, grp := range tb.Groups {
		for _, row := range grp.Rows {
			if row.Code == code {
				return row, true
			}
		}
	}
	return TrialBalanceRow{}, false
}

func trialRow(bal AccountBalance) TrialBalanceRow {
	row := TrialBalanceRow{
		Code:          bal.Code,
		Name:          bal.Name,
		Type:          bal.Type,
		Debit:         bal.Debit,
		Credit:        bal.Credit,
		Balance:       bal.Closing(),
		BalanceDebit:  decimal.Zero,
		BalanceCredit: decimal.Zero,
	}
	if net := bal.Debit.Sub(bal.Credit); net.IsPositive() {
		row.BalanceDebit = net
	} else {
		row.BalanceCredit = net.Neg()
	}
	return row
}
