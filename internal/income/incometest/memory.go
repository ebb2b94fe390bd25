// Package incometest provides an in-memory income repository for tests.
package incometest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/income"
)

// Repository keeps income in memory and shares units of work with a Book.
type Repository struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	book   *ledgertest.Book
	nextID int64
	rows   map[int64]income.OtherIncome
}

// New returns a repository bound to book.
func New(book *ledgertest.Book) *Repository {
	return &Repository{book: book, rows: map[int64]income.OtherIncome{}}
}

// Get returns a stored record.
func (r *Repository) Get(_ context.Context, id int64) (income.OtherIncome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[id]
	if !ok {
		return income.OtherIncome{}, income.ErrIncomeNotFound
	}
	return rec, nil
}

// List filters records newest first.
func (r *Repository) List(_ context.Context, filter income.ListFilter) ([]income.OtherIncome, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []income.OtherIncome
	for _, rec := range r.rows {
		if filter.Status != "" && rec.PaymentStatus != filter.Status {
			continue
		}
		if filter.ResidenceID != "" && rec.ResidenceID != filter.ResidenceID {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(rec.Category, filter.Category) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IncomeDate.Equal(out[j].IncomeDate) {
			return out[i].IncomeDate.After(out[j].IncomeDate)
		}
		return out[i].ID > out[j].ID
	})
	total := len(out)
	if filter.Offset >= total {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

// WithTx runs fn and rolls back both the income rows and the book on error.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx income.TxRepository, w ledger.Writer) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.mu.Lock()
	rows := make(map[int64]income.OtherIncome, len(r.rows))
	for k, v := range r.rows {
		rows[k] = v
	}
	nextID := r.nextID
	r.mu.Unlock()

	err := r.book.WithTx(ctx, func(ctx context.Context, w ledger.Writer) error {
		return fn(ctx, r, w)
	})
	if err != nil {
		r.mu.Lock()
		r.rows = rows
		r.nextID = nextID
		r.mu.Unlock()
	}
	return err
}

// Insert stores a new record.
func (r *Repository) Insert(_ context.Context, rec income.OtherIncome) (income.OtherIncome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now().UTC()
	rec.ID = r.nextID
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.rows[rec.ID] = rec
	return rec, nil
}

// GetForUpdate returns a stored record.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (income.OtherIncome, error) {
	return r.Get(ctx, id)
}

// Update replaces the mutable payment fields.
func (r *Repository) Update(_ context.Context, rec income.OtherIncome) (income.OtherIncome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[rec.ID]
	if !ok {
		return income.OtherIncome{}, income.ErrIncomeNotFound
	}
	current.PaymentStatus = rec.PaymentStatus
	current.PaymentMethod = rec.PaymentMethod
	current.ReceivedAt = rec.ReceivedAt
	current.RefundedAmount = rec.RefundedAmount
	current.UpdatedAt = time.Now().UTC()
	r.rows[rec.ID] = current
	return current, nil
}
