package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
)

// Cash flow activities.
const (
	ActivityOperating = "operating"
	ActivityInvesting = "investing"
	ActivityFinancing = "financing"
)

var sourceActivities = map[string]string{
	ledger.SourceExpenseAccrual:     ActivityOperating,
	ledger.SourceExpensePayment:     ActivityOperating,
	ledger.SourceExpenseDirect:      ActivityOperating,
	ledger.SourceMaintenanceAccrual: ActivityOperating,
	ledger.SourceMaintenancePayment: ActivityOperating,
	ledger.SourceIncomeReceipt:      ActivityOperating,
	ledger.SourceIncomeRefund:       ActivityOperating,
}

// CashFlowLine totals the cash moved by one source tag.
type CashFlowLine struct {
	Source  string          `json:"source"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlowSection is one activity bucket.
type CashFlowSection struct {
	Activity string          `json:"activity"`
	Lines    []CashFlowLine  `json:"lines"`
	Net      decimal.Decimal `json:"net"`
}

// CashFlow reconciles cash movements in a window against opening and closing
// cash balances.
type CashFlow struct {
	Basis       Basis           `json:"basis"`
	Period      Range           `json:"period"`
	Operating   CashFlowSection `json:"operating"`
	Investing   CashFlowSection `json:"investing"`
	Financing   CashFlowSection `json:"financing"`
	OpeningCash decimal.Decimal `json:"openingCash"`
	NetChange   decimal.Decimal `json:"netChange"`
	ClosingCash decimal.Decimal `json:"closingCash"`
	Reconciled  bool            `json:"reconciled"`
}

// CashFlowInput carries the three entry sets the statement needs: everything
// before the window, the full transactions inside it, and everything up to
// its end.
type CashFlowInput struct {
	Opening []ledger.Entry
	Period  []ledger.Entry
	Closing []ledger.Entry
}

// BuildCashFlow buckets cash-account lines by source tag, falling back to the
// type of the counter account for manual journals.
func BuildCashFlow(chart Chart, in CashFlowInput, basis Basis, rng Range) CashFlow {
	byTx := make(map[int64][]ledger.Entry)
	for _, e := range in.Period {
		byTx[e.TransactionID] = append(byTx[e.TransactionID], e)
	}

	lines := map[string]map[string]*CashFlowLine{
		ActivityOperating: {},
		ActivityInvesting: {},
		ActivityFinancing: {},
	}
	net := decimal.Zero
	for _, e := range in.Period {
		if !chart.accountOf(e).IsCash() {
			continue
		}
		activity := activityOf(chart, e, byTx[e.TransactionID])
		line, ok := lines[activity][e.Source]
		if !ok {
			line = &CashFlowLine{Source: e.Source, Inflow: decimal.Zero, Outflow: decimal.Zero, Net: decimal.Zero}
			lines[activity][e.Source] = line
		}
		line.Inflow = line.Inflow.Add(e.Debit)
		line.Outflow = line.Outflow.Add(e.Credit)
		line.Net = line.Inflow.Sub(line.Outflow)
		net = net.Add(e.Net())
	}

	out := CashFlow{
		Basis:       basis,
		Period:      rng,
		Operating:   cashSection(ActivityOperating, lines[ActivityOperating]),
		Investing:   cashSection(ActivityInvesting, lines[ActivityInvesting]),
		Financing:   cashSection(ActivityFinancing, lines[ActivityFinancing]),
		OpeningCash: cashBalance(chart, in.Opening),
		NetChange:   net,
		ClosingCash: cashBalance(chart, in.Closing),
	}
	out.Reconciled = out.OpeningCash.Add(out.NetChange).Equal(out.ClosingCash)
	return out
}

func activityOf(chart Chart, e ledger.Entry, siblings []ledger.Entry) string {
	if activity, ok := sourceActivities[e.Source]; ok {
		return activity
	}
	for _, other := range siblings {
		acc := chart.accountOf(other)
		if acc.IsCash() {
			continue
		}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			if acc.IsReceivable() {
				return ActivityOperating
			}
			return ActivityInvesting
		case accounts.AccountTypeEquity:
			return ActivityFinancing
		case accounts.AccountTypeLiability:
			if acc.IsPayable() {
				return ActivityOperating
			}
			return ActivityFinancing
		default:
			return ActivityOperating
		}
	}
	return ActivityOperating
}

func cashSection(activity string, lines map[string]*CashFlowLine) CashFlowSection {
	sec := CashFlowSection{Activity: activity, Net: decimal.Zero}
	for _, line := range lines {
		sec.Lines = append(sec.Lines, *line)
		sec.Net = sec.Net.Add(line.Net)
	}
	sort.Slice(sec.Lines, func(i, j int) bool { return sec.Lines[i].Source < sec.Lines[j].Source })
	return sec
}

func cashBalance(chart Chart, entries []ledger.Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if chart.accountOf(e).IsCash() {
			total = total.Add(e.Net())
		}
	}
	return total
}
