package ledger_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

type recordingObserver struct {
	sources []string
	errs    []error
}

func (o *recordingObserver) ObservePosting(source string, err error) {
	o.sources = append(o.sources, source)
	o.errs = append(o.errs, err)
}

type countingNotifier struct{ calls int }

func (n *countingNotifier) LedgerChanged(context.Context) { n.calls++ }

func twoLine(debit, credit accounts.Account, amount decimal.Decimal, ref string) ledger.PostingInput {
	return ledger.PostingInput{
		Date:        time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC),
		Description: "test posting",
		Type:        "accrual",
		Source:      ledger.SourceExpenseAccrual,
		SourceRef:   ledger.SourceRef{Model: ledger.ModelExpense, ID: ref},
		Lines: []ledger.PostingLine{
			{Account: debit, Debit: amount},
			{Account: credit, Credit: amount},
		},
	}
}

func TestPostWritesHeaderEntriesAndLinks(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	obs := &recordingObserver{}
	svc := ledger.NewService(book, ledger.WithObserver(obs))

	in := twoLine(chart.Account("5001"), chart.Account("2000"), decimal.RequireFromString("100"), "1")
	in.Lines[0].Metadata = ledger.AccrualMetadata{Year: 2024, Month: 4, Category: "maintenance"}

	tx, err := svc.Post(context.Background(), book, in)
	require.NoError(t, err)
	require.NotZero(t, tx.ID)
	require.Regexp(t, `^TXN-\d+-[0-9a-f]{6}$`, tx.TransactionNo)
	require.False(t, tx.CashMovement)
	require.Len(t, tx.EntryIDs, 2)
	require.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), tx.Date)

	entries := book.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, ledger.Period{Year: 2024, Month: 4}, entries[0].Period, "accrual metadata drives the period")
	require.Equal(t, ledger.Period{Year: 2024, Month: 5}, entries[1].Period, "no metadata falls back to the date")
	for _, e := range entries {
		require.Equal(t, tx.ID, e.TransactionID)
		require.Equal(t, ledger.StatusPosted, e.Status)
		require.Equal(t, "test posting", e.Description)
	}
	require.Equal(t, []string{ledger.SourceExpenseAccrual}, obs.sources)
	require.NoError(t, obs.errs[0])
}

func TestPostFlagsCashMovement(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	svc := ledger.NewService(book)
	tx, err := svc.Post(context.Background(), book, twoLine(chart.Account("2000"), chart.Account("1000"), decimal.NewFromInt(100), "1"))
	require.NoError(t, err)
	require.True(t, tx.CashMovement)
	for _, e := range book.Entries() {
		require.True(t, e.CashMovement)
	}
}

func TestPostRejectsImbalance(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	obs := &recordingObserver{}
	svc := ledger.NewService(book, ledger.WithObserver(obs))

	in := twoLine(chart.Account("5001"), chart.Account("2000"), decimal.NewFromInt(100), "1")
	in.Lines[1].Credit = decimal.RequireFromString("99.99")
	_, err := svc.Post(context.Background(), book, in)

	var imbalance *ledger.ImbalancedPostingError
	require.ErrorAs(t, err, &imbalance)
	require.ErrorIs(t, err, shared.ErrPosting)
	require.Equal(t, "100.00", imbalance.Debit.StringFixed(2))
	require.Empty(t, book.Transactions(), "nothing is written before validation passes")
	require.Error(t, obs.errs[0])
}

func TestValidateLineRules(t *testing.T) {
	chart := accountstest.NewSeeded()
	cash, ap := chart.Account("1000"), chart.Account("2000")

	in := twoLine(cash, ap, decimal.NewFromInt(10), "1")
	in.Lines = in.Lines[:1]
	require.ErrorIs(t, in.Validate(), ledger.ErrTooFewLines)

	in = twoLine(cash, ap, decimal.NewFromInt(10), "1")
	in.Lines[0].Credit = decimal.NewFromInt(10)
	require.ErrorIs(t, in.Validate(), shared.ErrValidation)

	in = twoLine(cash, ap, decimal.NewFromInt(-10), "1")
	require.ErrorIs(t, in.Validate(), shared.ErrValidation)

	inactive := ap
	inactive.IsActive = false
	in = twoLine(cash, inactive, decimal.NewFromInt(10), "1")
	require.ErrorIs(t, in.Validate(), shared.ErrValidation)

	in = twoLine(cash, ap, decimal.NewFromInt(10), "")
	require.ErrorIs(t, in.Validate(), shared.ErrValidation)
}

func TestValidateRoundsToCents(t *testing.T) {
	chart := accountstest.NewSeeded()
	in := twoLine(chart.Account("5002"), chart.Account("2000"), decimal.RequireFromString("10.004"), "1")
	in.Lines[1].Credit = decimal.RequireFromString("10.001")
	require.NoError(t, in.Validate())
	require.Equal(t, "10.00", in.Lines[0].Debit.StringFixed(2))
	require.True(t, in.Total().Equal(decimal.RequireFromString("10")))
}

func TestBalancedPostingsAlwaysBalance(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	svc := ledger.NewService(book)
	rng := rand.New(rand.NewSource(7))
	pairs := [][2]string{{"5001", "2000"}, {"2000", "1000"}, {"1001", "4000"}, {"4100", "1003"}, {"5099", "1002"}}
	for i := 0; i < 200; i++ {
		pair := pairs[i%len(pairs)]
		amount := decimal.New(rng.Int63n(10_000_000)+1, -2)
		_, err := svc.Post(context.Background(), book, twoLine(chart.Account(pair[0]), chart.Account(pair[1]), amount, "p"))
		require.NoError(t, err)
	}
	for _, tx := range book.Transactions() {
		debit, credit := decimal.Zero, decimal.Zero
		full, err := book.GetTransaction(context.Background(), tx.ID)
		require.NoError(t, err)
		for _, e := range full.Entries {
			debit = debit.Add(e.Debit)
			credit = credit.Add(e.Credit)
		}
		require.True(t, debit.Equal(credit), "transaction %s", tx.TransactionNo)
	}
}

func TestDeleteCascadeRemovesOnlyEmptiedTransactions(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	svc := ledger.NewService(book)
	ctx := context.Background()

	_, err := svc.Post(ctx, book, twoLine(chart.Account("5001"), chart.Account("2000"), decimal.NewFromInt(100), "7"))
	require.NoError(t, err)
	_, err = svc.Post(ctx, book, twoLine(chart.Account("2000"), chart.Account("1000"), decimal.NewFromInt(100), "7"))
	require.NoError(t, err)

	// A compound transaction shared between two sources keeps its other lines.
	compound := ledger.PostingInput{
		Date: time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), Type: "manual", Source: ledger.SourceManual,
		SourceRef: ledger.SourceRef{Model: ledger.ModelManual, ID: "m1"},
		Lines: []ledger.PostingLine{
			{Account: chart.Account("5099"), Debit: decimal.NewFromInt(5)},
			{Account: chart.Account("1000"), Credit: decimal.NewFromInt(5)},
		},
	}
	sharedTx, err := svc.Post(ctx, book, compound)
	require.NoError(t, err)
	extra := []ledger.Entry{{
		AccountID: chart.Account("2000").ID, AccountCode: "2000", Debit: decimal.NewFromInt(1), Source: ledger.SourceExpensePayment,
		SourceRef: ledger.SourceRef{Model: ledger.ModelExpense, ID: "7"}, Status: ledger.StatusPosted,
	}}
	extra, err = book.InsertEntries(ctx, extra)
	require.NoError(t, err)
	require.NoError(t, book.LinkEntries(ctx, sharedTx.ID, []int64{extra[0].ID}))

	res, err := svc.DeleteCascade(ctx, book, ledger.SourceRef{Model: ledger.ModelExpense, ID: "7"})
	require.NoError(t, err)
	require.Equal(t, ledger.CascadeResult{EntriesDeleted: 5, TransactionsDeleted: 2}, res)

	txs := book.Transactions()
	require.Len(t, txs, 1)
	require.Equal(t, sharedTx.ID, txs[0].ID)
	require.Len(t, book.Entries(), 2)

	res, err = svc.DeleteCascade(ctx, book, ledger.SourceRef{Model: ledger.ModelExpense, ID: "7"})
	require.NoError(t, err)
	require.Zero(t, res.EntriesDeleted)
}

func TestPostManualRollsBackOnFailure(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	notifier := &countingNotifier{}
	svc := ledger.NewService(book, ledger.WithNotifier(notifier))

	book.FailInsertEntries = errors.New("disk full")
	in := twoLine(chart.Account("5099"), chart.Account("1000"), decimal.NewFromInt(20), "m-1")
	in.Source = ""
	in.Type = ""
	_, err := svc.PostManual(context.Background(), in)
	require.ErrorContains(t, err, "disk full")
	require.Empty(t, book.Transactions())
	require.Zero(t, notifier.calls)

	tx, err := svc.PostManual(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "manual", tx.Type)
	require.Equal(t, 1, notifier.calls)
	require.Equal(t, ledger.SourceManual, book.Entries()[0].Source)
}

func TestEntriesForStatementFilters(t *testing.T) {
	chart := accountstest.NewSeeded()
	book := ledgertest.NewBook()
	svc := ledger.NewService(book)
	ctx := context.Background()

	accrual := twoLine(chart.Account("5001"), chart.Account("2000"), decimal.NewFromInt(100), "1")
	accrual.ResidenceID = "north"
	_, err := svc.Post(ctx, book, accrual)
	require.NoError(t, err)
	payment := twoLine(chart.Account("2000"), chart.Account("1000"), decimal.NewFromInt(100), "1")
	payment.Date = time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	_, err = svc.Post(ctx, book, payment)
	require.NoError(t, err)

	cash, err := svc.EntriesForStatement(ctx, ledger.StatementFilter{CashOnly: true})
	require.NoError(t, err)
	require.Len(t, cash, 2)

	may, err := svc.EntriesForStatement(ctx, ledger.StatementFilter{Periods: []ledger.Period{{Year: 2024, Month: 5}}})
	require.NoError(t, err)
	require.Len(t, may, 2)

	north, err := svc.EntriesForStatement(ctx, ledger.StatementFilter{ResidenceID: "north", AccountCodes: []string{"5001"}})
	require.NoError(t, err)
	require.Len(t, north, 1)

	upTo, err := svc.EntriesForStatement(ctx, ledger.StatementFilter{To: time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, upTo, 2)
}

func TestMetadataEnvelope(t *testing.T) {
	raw, err := ledger.EncodeMetadata(ledger.SettlementMetadata{MonthSettled: "2024-06", SettledAccountCode: "5001"})
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"settlement","data":{"monthSettled":"2024-06","settledAccountCode":"5001"}}`, string(raw))

	meta, err := ledger.DecodeMetadata(raw)
	require.NoError(t, err)
	settlement, ok := meta.(ledger.SettlementMetadata)
	require.True(t, ok)
	require.Equal(t, "5001", settlement.SettledAccountCode)
	require.Equal(t, ledger.Period{Year: 2024, Month: 6}, ledger.PeriodFor(meta, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))

	meta, err = ledger.DecodeMetadata([]byte(`{}`))
	require.NoError(t, err)
	require.Nil(t, meta)

	_, err = ledger.DecodeMetadata([]byte(`{"kind":"mystery"}`))
	require.Error(t, err)
}
