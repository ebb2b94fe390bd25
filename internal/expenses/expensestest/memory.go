// Package expensestest provides an in-memory expense repository for tests.
package expensestest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/expenses"
)

// Repository keeps expenses in memory and shares units of work with a Book.
type Repository struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	book   *ledgertest.Book
	nextID int64
	rows   map[int64]expenses.Expense
}

// New returns a repository bound to book.
func New(book *ledgertest.Book) *Repository {
	return &Repository{book: book, rows: map[int64]expenses.Expense{}}
}

// Get returns a live expense.
func (r *Repository) Get(_ context.Context, id int64) (expenses.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok || e.DeletedAt != nil {
		return expenses.Expense{}, expenses.ErrExpenseNotFound
	}
	return e, nil
}

// Raw returns the stored row including soft deleted ones.
func (r *Repository) Raw(id int64) (expenses.Expense, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	return e, ok
}

// List filters live expenses newest first.
func (r *Repository) List(_ context.Context, filter expenses.ListFilter) ([]expenses.Expense, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []expenses.Expense
	for _, e := range r.rows {
		if e.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && e.PaymentStatus != filter.Status {
			continue
		}
		if filter.ResidenceID != "" && e.ResidenceID != filter.ResidenceID {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(e.Category, filter.Category) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpenseDate.Equal(out[j].ExpenseDate) {
			return out[i].ExpenseDate.After(out[j].ExpenseDate)
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

// WithTx runs fn and rolls back both the expense rows and the book on error.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx expenses.TxRepository, w ledger.Writer) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	rows, nextID := r.snapshot()
	err := r.book.WithTx(ctx, func(ctx context.Context, w ledger.Writer) error {
		return fn(ctx, r, w)
	})
	if err != nil {
		r.restore(rows, nextID)
	}
	return err
}

// Insert stores a new expense.
func (r *Repository) Insert(_ context.Context, e expenses.Expense) (expenses.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now().UTC()
	e.ID = r.nextID
	e.CreatedAt = now
	e.UpdatedAt = now
	r.rows[e.ID] = e
	return e, nil
}

// GetForUpdate returns a live expense.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (expenses.Expense, error) {
	return r.Get(ctx, id)
}

// Update replaces the mutable payment fields.
func (r *Repository) Update(_ context.Context, e expenses.Expense) (expenses.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[e.ID]
	if !ok || current.DeletedAt != nil {
		return expenses.Expense{}, expenses.ErrExpenseNotFound
	}
	current.PaymentStatus = e.PaymentStatus
	current.PaymentMethod = e.PaymentMethod
	current.PaidAt = e.PaidAt
	current.PaidBy = e.PaidBy
	current.Accrued = e.Accrued
	current.UpdatedAt = time.Now().UTC()
	r.rows[e.ID] = current
	return current, nil
}

// SoftDelete marks the expense deleted.
func (r *Repository) SoftDelete(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[id]
	if !ok || current.DeletedAt != nil {
		return expenses.ErrExpenseNotFound
	}
	current.DeletedAt = &at
	r.rows[id] = current
	return nil
}

func (r *Repository) snapshot() (map[int64]expenses.Expense, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := make(map[int64]expenses.Expense, len(r.rows))
	for k, v := range r.rows {
		rows[k] = v
	}
	return rows, r.nextID
}

func (r *Repository) restore(rows map[int64]expenses.Expense, nextID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
	r.nextID = nextID
}
