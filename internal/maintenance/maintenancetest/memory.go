// Package maintenancetest provides an in-memory maintenance repository for tests.
package maintenancetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger/ledgertest"
	"github.com/odyssey-erp/estate-ledger/internal/maintenance"
)

// Repository keeps requests in memory and shares units of work with a Book.
type Repository struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	book   *ledgertest.Book
	nextID int64
	rows   map[int64]maintenance.Request
}

// New returns a repository bound to book.
func New(book *ledgertest.Book) *Repository {
	return &Repository{book: book, rows: map[int64]maintenance.Request{}}
}

// Get returns a stored request.
func (r *Repository) Get(_ context.Context, id int64) (maintenance.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok {
		return maintenance.Request{}, maintenance.ErrRequestNotFound
	}
	return req, nil
}

// List filters requests newest first.
func (r *Repository) List(_ context.Context, filter maintenance.ListFilter) ([]maintenance.Request, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []maintenance.Request
	for _, req := range r.rows {
		if filter.Status != "" && req.FinanceStatus != filter.Status {
			continue
		}
		if filter.ResidenceID != "" && req.ResidenceID != filter.ResidenceID {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
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

// WithTx runs fn and rolls back both the requests and the book on error.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx maintenance.TxRepository, w ledger.Writer) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	r.mu.Lock()
	rows := make(map[int64]maintenance.Request, len(r.rows))
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

// Insert stores a new request.
func (r *Repository) Insert(_ context.Context, req maintenance.Request) (maintenance.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now().UTC()
	req.ID = r.nextID
	req.CreatedAt = now
	req.UpdatedAt = now
	r.rows[req.ID] = req
	return req, nil
}

// GetForUpdate returns a stored request.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (maintenance.Request, error) {
	return r.Get(ctx, id)
}

// Update replaces the workflow fields.
func (r *Repository) Update(_ context.Context, req maintenance.Request) (maintenance.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.rows[req.ID]
	if !ok {
		return maintenance.Request{}, maintenance.ErrRequestNotFound
	}
	current.FinanceStatus = req.FinanceStatus
	current.PaymentMethod = req.PaymentMethod
	current.RejectionReason = req.RejectionReason
	current.ApprovedBy = req.ApprovedBy
	current.ApprovedAt = req.ApprovedAt
	current.PaidAt = req.PaidAt
	current.UpdatedAt = time.Now().UTC()
	r.rows[req.ID] = current
	return current, nil
}
