// Package accountstest provides an in-memory account repository for tests.
package accountstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/accounts"
)

// Repository is a concurrency safe in-memory accounts.Repository.
type Repository struct {
	mu      sync.Mutex
	nextID  int64
	byCode  map[string]accounts.Account
	posted  map[int64]bool
	Updates int
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{byCode: map[string]accounts.Account{}, posted: map[int64]bool{}}
}

// NewSeeded returns a repository holding accounts.DefaultChart.
func NewSeeded() *Repository {
	repo := NewRepository()
	svc := accounts.NewService(repo, nil)
	if _, err := svc.SeedDefaults(context.Background()); err != nil {
		panic(err)
	}
	return repo
}

// MarkPosted flags the account as referenced by ledger entries.
func (r *Repository) MarkPosted(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.byCode[code]; ok {
		r.posted[acc.ID] = true
	}
}

// Account returns the stored account or panics; for test setup only.
func (r *Repository) Account(code string) accounts.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.byCode[code]
	if !ok {
		panic("accountstest: unknown account " + code)
	}
	return acc
}

func (r *Repository) List(_ context.Context, filter accounts.ListFilter) ([]accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]accounts.Account, 0, len(r.byCode))
	for _, acc := range r.byCode {
		if filter.Type != "" && acc.Type != filter.Type {
			continue
		}
		if filter.Active != nil && acc.IsActive != *filter.Active {
			continue
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *Repository) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.byCode[code]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return acc, nil
}

func (r *Repository) Insert(_ context.Context, acc accounts.Account) (accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[acc.Code]; ok {
		return accounts.Account{}, accounts.ErrDuplicateCode
	}
	r.nextID++
	acc.ID = r.nextID
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = acc.CreatedAt
	r.byCode[acc.Code] = acc
	return acc, nil
}

func (r *Repository) Update(_ context.Context, acc accounts.Account) (accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byCode[acc.Code]
	if !ok || current.ID != acc.ID {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	acc.UpdatedAt = time.Now()
	r.byCode[acc.Code] = acc
	r.Updates++
	return acc, nil
}

func (r *Repository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, acc := range r.byCode {
		if acc.ID == id {
			delete(r.byCode, code)
			return nil
		}
	}
	return accounts.ErrAccountNotFound
}

func (r *Repository) HasPostings(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posted[id], nil
}
