// Package audittest provides an in-memory audit store for tests.
package audittest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/odyssey-erp/estate-ledger/internal/audit"
)

// Store keeps entries in memory.
type Store struct {
	mu      sync.Mutex
	entries []audit.Entry
	nextID  int64
	// Fail makes every Insert return an error.
	Fail bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Insert implements audit.Store.
func (s *Store) Insert(_ context.Context, e audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return audit.Entry{}, errors.New("audittest: insert failed")
	}
	s.nextID++
	e.ID = s.nextID
	s.entries = append(s.entries, e)
	return e, nil
}

// List implements audit.Store.
func (s *Store) List(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.entries {
		if filter.ResourceType != "" && e.ResourceType != filter.ResourceType {
			continue
		}
		if filter.RecordID != "" && e.RecordID != filter.RecordID {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Entries returns every stored entry in insertion order.
func (s *Store) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}
