// Package memstore provides the in-memory store.Store used by tests, the
// examples and single-run sessions that do not need persistence.
package memstore

import (
	"fmt"
	"sync"

	"github.com/couplex/couplex/store"
)

type table struct {
	vals store.Values
}

// Store keeps all table values in memory. It is safe for concurrent use;
// writes to disjoint indices of the same table do not conflict.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string]*table)}
}

func (s *Store) Register(name string, size int) error {
	if size < 0 {
		return fmt.Errorf("memstore: negative size %d for table %q", size, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		if t.vals.Len() != size {
			return fmt.Errorf("memstore: table %q already registered with size %d, got %d", name, t.vals.Len(), size)
		}
		return nil
	}
	s.tables[name] = &table{vals: store.NewValues(size)}
	return nil
}

func (s *Store) Read(name string, indices []int) (store.Values, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return store.Values{}, fmt.Errorf("memstore: unknown table %q", name)
	}
	out := store.NewValues(len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= t.vals.Len() {
			return store.Values{}, fmt.Errorf("memstore: index %d out of range for table %q (size %d)", idx, name, t.vals.Len())
		}
		if x, ok := t.vals.Get(idx); ok {
			out.Set(i, x)
		}
	}
	return out, nil
}

func (s *Store) Write(name string, indices []int, vals store.Values) error {
	if vals.Len() != len(indices) {
		return fmt.Errorf("memstore: %d values for %d indices in table %q", vals.Len(), len(indices), name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("memstore: unknown table %q", name)
	}
	for i, idx := range indices {
		if idx < 0 || idx >= t.vals.Len() {
			return fmt.Errorf("memstore: index %d out of range for table %q (size %d)", idx, name, t.vals.Len())
		}
		if x, ok := vals.Get(i); ok {
			t.vals.Set(idx, x)
		}
	}
	return nil
}

// Stage opens a working area over the store. The name is informational.
func (s *Store) Stage(name string) (store.Stage, error) {
	return &stage{name: name, parent: s, overlay: New()}, nil
}

func (s *Store) Close() error { return nil }

// size returns the registered size of a table, or -1.
func (s *Store) size(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return t.vals.Len()
	}
	return -1
}

type stage struct {
	name    string
	parent  *Store
	overlay *Store
	done    bool
}

func (st *stage) Register(name string, size int) error {
	if st.done {
		return fmt.Errorf("memstore: stage %q already closed", st.name)
	}
	if err := st.parent.Register(name, size); err != nil {
		return err
	}
	return st.overlay.Register(name, size)
}

func (st *stage) Read(name string, indices []int) (store.Values, error) {
	if st.done {
		return store.Values{}, fmt.Errorf("memstore: stage %q already closed", st.name)
	}
	base, err := st.parent.Read(name, indices)
	if err != nil {
		return store.Values{}, err
	}
	if st.overlay.size(name) < 0 {
		return base, nil
	}
	over, err := st.overlay.Read(name, indices)
	if err != nil {
		return store.Values{}, err
	}
	for i := range indices {
		if x, ok := over.Get(i); ok {
			base.Set(i, x)
		}
	}
	return base, nil
}

func (st *stage) Write(name string, indices []int, vals store.Values) error {
	if st.done {
		return fmt.Errorf("memstore: stage %q already closed", st.name)
	}
	size := st.parent.size(name)
	if size < 0 {
		return fmt.Errorf("memstore: unknown table %q", name)
	}
	if err := st.overlay.Register(name, size); err != nil {
		return err
	}
	return st.overlay.Write(name, indices, vals)
}

// Promote publishes the staged writes to the parent store. The stage closes
// only once every write has landed; a failed promotion leaves it open so the
// caller can still retry or discard.
func (st *stage) Promote() error {
	if st.done {
		return fmt.Errorf("memstore: stage %q already closed", st.name)
	}
	st.overlay.mu.RLock()
	defer st.overlay.mu.RUnlock()
	for name, t := range st.overlay.tables {
		indices := make([]int, 0, t.vals.Len())
		for i := 0; i < t.vals.Len(); i++ {
			if t.vals.Valid.Test(uint(i)) {
				indices = append(indices, i)
			}
		}
		if len(indices) == 0 {
			continue
		}
		vals := store.NewValues(len(indices))
		for i, idx := range indices {
			x, _ := t.vals.Get(idx)
			vals.Set(i, x)
		}
		if err := st.parent.Write(name, indices, vals); err != nil {
			return err
		}
	}
	st.done = true
	return nil
}

func (st *stage) Discard() error {
	if st.done {
		return fmt.Errorf("memstore: stage %q already closed", st.name)
	}
	st.done = true
	st.overlay = New()
	return nil
}
