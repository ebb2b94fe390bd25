package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
)

// CurrentEarningsLabel names the synthetic equity line holding income minus
// expense not yet closed to retained earnings.
const CurrentEarningsLabel = "Current Earnings"

// BalanceSheetAccount summarises an asset, liability or equity account.
type BalanceSheetAccount struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceSheetSection contains the accounts and total of a classification.
type BalanceSheetSection struct {
	Label    string                `json:"label"`
	Accounts []BalanceSheetAccount `json:"accounts"`
	Total    decimal.Decimal       `json:"total"`
}

// BalanceSheet is the position as of a date.
type BalanceSheet struct {
	AsOf                      time.Time           `json:"asOf"`
	Basis                     Basis               `json:"basis"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentEarnings           decimal.Decimal     `json:"currentEarnings"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"totalLiabilitiesAndEquity"`
	Balanced                  bool                `json:"balanced"`
}

// BuildBalanceSheet aggregates balances up to asOf. On the cash basis only
// cash accounts appear among assets and payables and receivables are left out.
func BuildBalanceSheet(chart Chart, entries []ledger.Entry, asOf time.Time, basis Basis) BalanceSheet {
	assets := BalanceSheetSection{Label: "Assets", Total: decimal.Zero}
	liabilities := BalanceSheetSection{Label: "Liabilities", Total: decimal.Zero}
	equity := BalanceSheetSection{Label: "Equity", Total: decimal.Zero}
	earnings := decimal.Zero

	for _, bal := range recognisedBalances(chart, entries, basis) {
		acc, _ := chart.Lookup(bal.Code)
		if basis == BasisCash && (acc.IsPayable() || acc.IsReceivable()) {
			continue
		}
		row := BalanceSheetAccount{Code: bal.Code, Name: bal.Name, Balance: bal.Closing()}
		switch bal.Type {
		case accounts.AccountTypeAsset:
			if basis == BasisCash && !acc.IsCash() {
				continue
			}
			assets.Accounts = append(assets.Accounts, row)
			assets.Total = assets.Total.Add(row.Balance)
		case accounts.AccountTypeLiability:
			liabilities.Accounts = append(liabilities.Accounts, row)
			liabilities.Total = liabilities.Total.Add(row.Balance)
		case accounts.AccountTypeEquity:
			equity.Accounts = append(equity.Accounts, row)
			equity.Total = equity.Total.Add(row.Balance)
		case accounts.AccountTypeIncome:
			earnings = earnings.Add(row.Balance)
		case accounts.AccountTypeExpense:
			earnings = earnings.Sub(row.Balance)
		}
	}
	equity.Accounts = append(equity.Accounts, BalanceSheetAccount{Name: CurrentEarningsLabel, Balance: earnings})
	equity.Total = equity.Total.Add(earnings)

	total := liabilities.Total.Add(equity.Total)
	return BalanceSheet{
		AsOf:                      asOf,
		Basis:                     basis,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		CurrentEarnings:           earnings,
		TotalLiabilitiesAndEquity: total,
		Balanced:                  assets.Total.Equal(total),
	}
}

func recognisedBalances(chart Chart, entries []ledger.Entry, basis Basis) []AccountBalance {
	if basis != BasisCash {
		return Aggregate(chart, entries)
	}
	moved := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		acc := chart.recognise(e, basis)
		e.AccountCode, e.AccountName, e.AccountType = acc.Code, acc.Name, acc.Type
		moved = append(moved, e)
	}
	return Aggregate(chart, moved)
}
