package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
)

// StatementLine is an income or expense account inside a section. Amount
// covers the account alone; RolledUp adds every descendant account.
type StatementLine struct {
	Code       string                     `json:"code"`
	Name       string                     `json:"name"`
	ParentCode string                     `json:"parentCode,omitempty"`
	Amount     decimal.Decimal            `json:"amount"`
	RolledUp   decimal.Decimal            `json:"rolledUp"`
	Monthly    map[string]decimal.Decimal `json:"monthly"`
}

// Section groups lines of one nature.
type Section struct {
	Label string          `json:"label"`
	Lines []StatementLine `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// Line returns the line for code, if present.
func (s Section) Line(code string) (StatementLine, bool) {
	for _, line := range s.Lines {
		if line.Code == code {
			return line, true
		}
	}
	return StatementLine{}, false
}

// IncomeStatement is the profit and loss for a window.
type IncomeStatement struct {
	Basis      Basis                      `json:"basis"`
	Period     Range                      `json:"period"`
	Months     []string                   `json:"months"`
	Income     Section                    `json:"income"`
	Expense    Section                    `json:"expense"`
	NetIncome  decimal.Decimal            `json:"netIncome"`
	MonthlyNet map[string]decimal.Decimal `json:"monthlyNet"`
}

// BuildIncomeStatement aggregates income (credit minus debit) and expense
// (debit minus credit) per account and month. Entries must already be limited
// to the window and basis.
func BuildIncomeStatement(chart Chart, entries []ledger.Entry, basis Basis, rng Range) IncomeStatement {
	months := rng.Months()
	amounts := make(map[string]decimal.Decimal)
	monthly := make(map[string]map[string]decimal.Decimal)
	for _, e := range entries {
		acc := chart.recognise(e, basis)
		var signed decimal.Decimal
		switch acc.Type {
		case accounts.AccountTypeIncome:
			signed = e.Credit.Sub(e.Debit)
		case accounts.AccountTypeExpense:
			signed = e.Debit.Sub(e.Credit)
		default:
			continue
		}
		amounts[acc.Code] = amounts[acc.Code].Add(signed)
		if monthly[acc.Code] == nil {
			monthly[acc.Code] = make(map[string]decimal.Decimal)
		}
		key := monthKey(e)
		monthly[acc.Code][key] = monthly[acc.Code][key].Add(signed)
	}

	parents := make(map[int64]string)
	for _, acc := range chart.all {
		parents[acc.ID] = acc.Code
	}
	section := func(label string, t accounts.AccountType) Section {
		sec := Section{Label: label, Total: decimal.Zero}
		for _, acc := range chart.sorted() {
			if acc.Type != t {
				continue
			}
			_, moved := amounts[acc.Code]
			if !acc.IsActive && !moved {
				continue
			}
			line := StatementLine{
				Code:     acc.Code,
				Name:     acc.Name,
				Amount:   amounts[acc.Code],
				RolledUp: decimal.Zero,
				Monthly:  make(map[string]decimal.Decimal, len(months)),
			}
			if acc.ParentID != nil {
				line.ParentCode = parents[*acc.ParentID]
			}
			for _, code := range chart.Descendants(acc.Code) {
				line.RolledUp = line.RolledUp.Add(amounts[code])
			}
			for _, m := range months {
				line.Monthly[m] = monthly[acc.Code][m]
			}
			sec.Lines = append(sec.Lines, line)
			sec.Total = sec.Total.Add(line.Amount)
		}
		return sec
	}

	stmt := IncomeStatement{
		Basis:      basis,
		Period:     rng,
		Months:     months,
		Income:     section("Income", accounts.AccountTypeIncome),
		Expense:    section("Expense", accounts.AccountTypeExpense),
		MonthlyNet: make(map[string]decimal.Decimal, len(months)),
	}
	stmt.NetIncome = stmt.Income.Total.Sub(stmt.Expense.Total)
	for _, m := range months {
		net := decimal.Zero
		for _, line := range stmt.Income.Lines {
			net = net.Add(line.Monthly[m])
		}
		for _, line := range stmt.Expense.Lines {
			net = net.Sub(line.Monthly[m])
		}
		stmt.MonthlyNet[m] = net
	}
	return stmt
}
