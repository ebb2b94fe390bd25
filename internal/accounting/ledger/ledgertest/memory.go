// Package ledgertest provides an in-memory ledger store for tests.
package ledgertest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
)

// Book is an in-memory ledger.Store and ledger.Writer.
type Book struct {
	mu           sync.Mutex
	nextTxID     int64
	nextEntryID  int64
	transactions map[int64]ledger.Transaction
	entries      map[int64]ledger.Entry

	// FailInsertEntries, when set, is returned by the next InsertEntries call.
	FailInsertEntries error
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{transactions: map[int64]ledger.Transaction{}, entries: map[int64]ledger.Entry{}}
}

// Snapshot captures the book state for Restore.
type Snapshot struct {
	nextTxID     int64
	nextEntryID  int64
	transactions map[int64]ledger.Transaction
	entries      map[int64]ledger.Entry
}

// Snapshot copies the current state.
func (b *Book) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		nextTxID:     b.nextTxID,
		nextEntryID:  b.nextEntryID,
		transactions: make(map[int64]ledger.Transaction, len(b.transactions)),
		entries:      make(map[int64]ledger.Entry, len(b.entries)),
	}
	for k, v := range b.transactions {
		snap.transactions[k] = v
	}
	for k, v := range b.entries {
		snap.entries[k] = v
	}
	return snap
}

// Restore rolls the book back to snap.
func (b *Book) Restore(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTxID = snap.nextTxID
	b.nextEntryID = snap.nextEntryID
	b.transactions = snap.transactions
	b.entries = snap.entries
}

// WithTx runs fn and restores the previous state when it fails.
func (b *Book) WithTx(ctx context.Context, fn func(ctx context.Context, w ledger.Writer) error) error {
	snap := b.Snapshot()
	if err := fn(ctx, b); err != nil {
		b.Restore(snap)
		return err
	}
	return nil
}

func (b *Book) InsertTransaction(_ context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextTxID++
	t.ID = b.nextTxID
	t.CreatedAt = time.Now()
	b.transactions[t.ID] = t
	return t, nil
}

func (b *Book) InsertEntries(_ context.Context, entries []ledger.Entry) ([]ledger.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailInsertEntries; err != nil {
		b.FailInsertEntries = nil
		return nil, err
	}
	out := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		b.nextEntryID++
		e.ID = b.nextEntryID
		e.CreatedAt = time.Now()
		b.entries[e.ID] = e
		out = append(out, e)
	}
	return out, nil
}

func (b *Book) LinkEntries(_ context.Context, transactionID int64, entryIDs []int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.transactions[transactionID]
	if !ok {
		return ledger.ErrTransactionNotFound
	}
	for _, id := range entryIDs {
		e, ok := b.entries[id]
		if !ok {
			return errors.New("ledgertest: unknown entry")
		}
		e.TransactionID = transactionID
		e.TransactionNo = t.TransactionNo
		e.CashMovement = t.CashMovement
		b.entries[id] = e
	}
	t.EntryIDs = append(t.EntryIDs, entryIDs...)
	b.transactions[transactionID] = t
	return nil
}

func (b *Book) DeleteEntriesBySource(_ context.Context, ref ledger.SourceRef) (int, []int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	deleted := 0
	seen := map[int64]struct{}{}
	var txIDs []int64
	for _, id := range b.sortedEntryIDs() {
		e := b.entries[id]
		if e.SourceRef != ref {
			continue
		}
		delete(b.entries, id)
		deleted++
		if t, ok := b.transactions[e.TransactionID]; ok {
			t.EntryIDs = removeID(t.EntryIDs, id)
			b.transactions[t.ID] = t
		}
		if _, ok := seen[e.TransactionID]; !ok && e.TransactionID != 0 {
			seen[e.TransactionID] = struct{}{}
			txIDs = append(txIDs, e.TransactionID)
		}
	}
	return deleted, txIDs, nil
}

func (b *Book) CountEntries(_ context.Context, transactionID int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.entries {
		if e.TransactionID == transactionID {
			n++
		}
	}
	return n, nil
}

func (b *Book) DeleteTransaction(_ context.Context, transactionID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.transactions, transactionID)
	return nil
}

// EntriesForStatement mirrors the Postgres predicate.
func (b *Book) EntriesForStatement(_ context.Context, filter ledger.StatementFilter) ([]ledger.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	codes := make(map[string]struct{}, len(filter.AccountCodes))
	for _, c := range filter.AccountCodes {
		codes[c] = struct{}{}
	}
	periods := make(map[ledger.Period]struct{}, len(filter.Periods))
	for _, p := range filter.Periods {
		periods[p] = struct{}{}
	}
	var out []ledger.Entry
	for _, id := range b.sortedEntryIDs() {
		e := b.entries[id]
		if e.Status != ledger.StatusPosted {
			continue
		}
		if !filter.From.IsZero() && e.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.Date.After(filter.To) {
			continue
		}
		if len(codes) > 0 {
			if _, ok := codes[e.AccountCode]; !ok {
				continue
			}
		}
		if filter.ResidenceID != "" && e.ResidenceID != filter.ResidenceID {
			continue
		}
		if filter.CashOnly && !e.CashMovement {
			continue
		}
		if len(periods) > 0 {
			if _, ok := periods[e.Period]; !ok {
				continue
			}
		}
		if filter.SourceRef != nil && e.SourceRef != *filter.SourceRef {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListTransactions returns headers newest first.
func (b *Book) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var all []ledger.Transaction
	for _, t := range b.transactions {
		if !filter.From.IsZero() && t.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && t.Date.After(filter.To) {
			continue
		}
		if filter.ResidenceID != "" && t.ResidenceID != filter.ResidenceID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.SourceRef != nil && !b.touches(t.ID, *filter.SourceRef) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return all[start:end], total, nil
}

// GetTransaction returns a header with its entries.
func (b *Book) GetTransaction(_ context.Context, id int64) (ledger.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	for _, eid := range b.sortedEntryIDs() {
		if e := b.entries[eid]; e.TransactionID == id {
			t.Entries = append(t.Entries, e)
		}
	}
	return t, nil
}

// Transactions returns every header ordered by id.
func (b *Book) Transactions() []ledger.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ledger.Transaction, 0, len(b.transactions))
	for _, t := range b.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entries returns every entry ordered by id.
func (b *Book) Entries() []ledger.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ledger.Entry, 0, len(b.entries))
	for _, id := range b.sortedEntryIDs() {
		out = append(out, b.entries[id])
	}
	return out
}

// BalanceOf returns debit minus credit across all entries on code.
func (b *Book) BalanceOf(code string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.Entries() {
		if e.AccountCode == code {
			total = total.Add(e.Net())
		}
	}
	return total
}

func (b *Book) touches(txID int64, ref ledger.SourceRef) bool {
	for _, e := range b.entries {
		if e.TransactionID == txID && e.SourceRef == ref {
			return true
		}
	}
	return false
}

func (b *Book) sortedEntryIDs() []int64 {
	ids := make([]int64, 0, len(b.entries))
	for id := range b.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
