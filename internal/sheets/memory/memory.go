package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ports "budgetbook/internal/sheets"
)

var _ ports.EntryMirror = (*Store)(nil)

// Store is an in-process EntryMirror for tests and local runs.
type Store struct {
	mu    sync.Mutex
	rows  map[int64]ports.Row
	order []int64
}

func New() *Store {
	return &Store{rows: make(map[int64]ports.Row)}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, r ports.Row) (string, error) {
	if r.EntryID <= 0 {
		return "", fmt.Errorf("invalid entry id %d", r.EntryID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[r.EntryID]; !ok {
		s.order = append(s.order, r.EntryID)
	}
	s.rows[r.EntryID] = r
	return fmt.Sprintf("mem:%d", s.position(r.EntryID)), nil
}

func (s *Store) position(id int64) int {
	for i, v := range s.order {
		if v == id {
			return i + 1
		}
	}
	return 0
}

func (s *Store) Delete(_ context.Context, entryID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, entryID)
	return nil
}

// Get returns the mirrored row of an entry.
func (s *Store) Get(entryID int64) (ports.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[entryID]
	return r, ok
}

// Rows returns the live rows ordered by entry id.
func (s *Store) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out
}
