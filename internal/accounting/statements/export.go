package statements

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// Export kinds accepted by Export.
const (
	KindTrialBalance    = "trial-balance"
	KindIncomeStatement = "income-statement"
	KindBalanceSheet    = "balance-sheet"
	KindCashFlow        = "cash-flow"
)

// XLSXContentType is the media type of statement exports.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrUnknownKind is returned for unsupported export kinds.
var ErrUnknownKind = shared.NewError(shared.ErrNotFound, "statements: unknown report kind")

// Export renders the requested statement as an XLSX workbook and returns the
// bytes with a suggested file name.
func (s *Service) Export(ctx context.Context, kind string, q Query) ([]byte, string, error) {
	var (
		sheet *sheetWriter
		label string
	)
	switch kind {
	case KindTrialBalance:
		tb, err := s.TrialBalance(ctx, q)
		if err != nil {
			return nil, "", err
		}
		sheet, label = trialBalanceSheet(tb), q.AsOf.Format(reports.DateLayout)
	case KindIncomeStatement:
		stmt, err := s.IncomeStatement(ctx, q)
		if err != nil {
			return nil, "", err
		}
		sheet, label = incomeStatementSheet(stmt), q.Period.Label
	case KindBalanceSheet:
		bs, err := s.BalanceSheet(ctx, q)
		if err != nil {
			return nil, "", err
		}
		sheet, label = balanceSheetSheet(bs), q.AsOf.Format(reports.DateLayout)
	case KindCashFlow:
		cf, err := s.CashFlow(ctx, q)
		if err != nil {
			return nil, "", err
		}
		sheet, label = cashFlowSheet(cf), q.Period.Label
	default:
		return nil, "", ErrUnknownKind
	}
	if sheet.err != nil {
		return nil, "", fmt.Errorf("statements: render %s: %w", kind, sheet.err)
	}
	var buf bytes.Buffer
	if err := sheet.file.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("statements: write %s: %w", kind, err)
	}
	_ = sheet.file.Close()
	return buf.Bytes(), fmt.Sprintf("%s-%s-%s.xlsx", kind, q.Basis, label), nil
}

const sheetName = "Report"

// sheetWriter appends rows to a single sheet and keeps the first error.
type sheetWriter struct {
	file   *excelize.File
	row    int
	header int
	err    error
}

func newSheet(title string) *sheetWriter {
	f := excelize.NewFile()
	w := &sheetWriter{file: f}
	index, err := f.NewSheet(sheetName)
	if err != nil {
		w.err = err
		return w
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		w.err = err
	}
	w.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil && w.err == nil {
		w.err = err
	}
	w.title(title)
	_ = f.SetColWidth(sheetName, "A", "A", 14)
	_ = f.SetColWidth(sheetName, "B", "B", 36)
	_ = f.SetColWidth(sheetName, "C", "H", 16)
	return w
}

func (w *sheetWriter) title(text string) {
	w.append(text)
	if w.err == nil {
		cell := fmt.Sprintf("A%d", w.row)
		w.err = w.file.SetCellStyle(sheetName, cell, cell, w.header)
	}
}

func (w *sheetWriter) headings(cols ...string) {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	w.append(values...)
	if w.err != nil {
		return
	}
	end, _ := excelize.CoordinatesToCellName(len(cols), w.row)
	w.err = w.file.SetCellStyle(sheetName, fmt.Sprintf("A%d", w.row), end, w.header)
}

func (w *sheetWriter) append(values ...any) {
	if w.err != nil {
		return
	}
	w.row++
	for i, v := range values {
		if d, ok := v.(decimal.Decimal); ok {
			v = d.InexactFloat64()
		}
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			w.err = err
			return
		}
		if err := w.file.SetCellValue(sheetName, cell, v); err != nil {
			w.err = err
			return
		}
	}
}

func (w *sheetWriter) blank() {
	if w.err == nil {
		w.row++
	}
}

func trialBalanceSheet(tb reports.TrialBalance) *sheetWriter {
	w := newSheet(fmt.Sprintf("Trial Balance as of %s (%s)", tb.AsOf.Format(reports.DateLayout), tb.Basis))
	w.headings("Code", "Account", "Type", "Debit", "Credit", "Balance")
	for _, grp := range tb.Groups {
		for _, row := range grp.Rows {
			w.append(row.Code, row.Name, string(row.Type), row.Debit, row.Credit, row.Balance)
		}
	}
	w.append("", "Total", "", tb.TotalDebit, tb.TotalCredit)
	return w
}

func incomeStatementSheet(stmt reports.IncomeStatement) *sheetWriter {
	w := newSheet(fmt.Sprintf("Income Statement %s (%s)", stmt.Period.Label, stmt.Basis))
	cols := append([]string{"Code", "Account", "Total"}, stmt.Months...)
	for _, sec := range []reports.Section{stmt.Income, stmt.Expense} {
		w.blank()
		w.title(sec.Label)
		w.headings(cols...)
		for _, line := range sec.Lines {
			values := []any{line.Code, line.Name, line.Amount}
			for _, m := range stmt.Months {
				values = append(values, line.Monthly[m])
			}
			w.append(values...)
		}
		w.append("", "Total "+sec.Label, sec.Total)
	}
	w.blank()
	w.append("", "Net Income", stmt.NetIncome)
	return w
}

func balanceSheetSheet(bs reports.BalanceSheet) *sheetWriter {
	w := newSheet(fmt.Sprintf("Balance Sheet as of %s (%s)", bs.AsOf.Format(reports.DateLayout), bs.Basis))
	for _, sec := range []reports.BalanceSheetSection{bs.Assets, bs.Liabilities, bs.Equity} {
		w.blank()
		w.title(sec.Label)
		w.headings("Code", "Account", "Balance")
		for _, acc := range sec.Accounts {
			w.append(acc.Code, acc.Name, acc.Balance)
		}
		w.append("", "Total "+sec.Label, sec.Total)
	}
	w.blank()
	w.append("", "Total Liabilities and Equity", bs.TotalLiabilitiesAndEquity)
	return w
}

func cashFlowSheet(cf reports.CashFlow) *sheetWriter {
	w := newSheet(fmt.Sprintf("Cash Flow %s (%s)", cf.Period.Label, cf.Basis))
	w.append("", "Opening Cash", cf.OpeningCash)
	for _, sec := range []reports.CashFlowSection{cf.Operating, cf.Investing, cf.Financing} {
		w.blank()
		w.title(sec.Activity)
		w.headings("Source", "", "Inflow", "Outflow", "Net")
		for _, line := range sec.Lines {
			w.append(line.Source, "", line.Inflow, line.Outflow, line.Net)
		}
		w.append("", "Net "+sec.Activity, "", "", sec.Net)
	}
	w.blank()
	w.append("", "Net Change", cf.NetChange)
	w.append("", "Closing Cash", cf.ClosingCash)
	return w
}
