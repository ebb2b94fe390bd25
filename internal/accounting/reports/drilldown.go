package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
)

// DrilldownRow is one entry behind an income statement figure.
type DrilldownRow struct {
	EntryID        int64           `json:"entryId"`
	TransactionID  int64           `json:"transactionId"`
	Date           time.Time       `json:"date"`
	AccountCode    string          `json:"accountCode"`
	PostedCode     string          `json:"postedCode"`
	Description    string          `json:"description"`
	Source         string          `json:"source"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// Drilldown lists the entries of an account and its descendants, newest first.
type Drilldown struct {
	Account accounts.Account `json:"account"`
	Codes   []string         `json:"codes"`
	Month   string           `json:"month"`
	Basis   Basis            `json:"basis"`
	Rows    []DrilldownRow   `json:"rows"`
	Total   decimal.Decimal  `json:"total"`
}

// BuildDrilldown keeps the entries recognised against account or one of its
// descendants. The running balance accumulates oldest to newest on the
// account's normal side; rows are then returned newest first.
func BuildDrilldown(chart Chart, account accounts.Account, entries []ledger.Entry, basis Basis, month string) Drilldown {
	codes := chart.Descendants(account.Code)
	if len(codes) == 0 {
		codes = []string{account.Code}
	}
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		wanted[c] = struct{}{}
	}

	type match struct {
		entry ledger.Entry
		code  string
	}
	var matched []match
	for _, e := range entries {
		if month != "" && monthKey(e) != month {
			continue
		}
		acc := chart.recognise(e, basis)
		if _, ok := wanted[acc.Code]; ok {
			matched = append(matched, match{entry: e, code: acc.Code})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i].entry, matched[j].entry
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})

	out := Drilldown{Account: account, Codes: codes, Month: month, Basis: basis, Total: decimal.Zero}
	running := decimal.Zero
	for _, m := range matched {
		delta := m.entry.Debit.Sub(m.entry.Credit)
		if !account.Type.DebitNormal() {
			delta = delta.Neg()
		}
		running = running.Add(delta)
		out.Rows = append(out.Rows, DrilldownRow{
			EntryID:        m.entry.ID,
			TransactionID:  m.entry.TransactionID,
			Date:           m.entry.Date,
			AccountCode:    m.code,
			PostedCode:     m.entry.AccountCode,
			Description:    m.entry.Description,
			Source:         m.entry.Source,
			Debit:          m.entry.Debit,
			Credit:         m.entry.Credit,
			RunningBalance: running,
		})
	}
	out.Total = running
	for i, j := 0, len(out.Rows)-1; i < j; i, j = i+1, j-1 {
		out.Rows[i], out.Rows[j] = out.Rows[j], out.Rows[i]
	}
	return out
}
