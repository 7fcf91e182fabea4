// Package store defines the persistence contract for table values: plain
// reads and writes addressed by flat domain indices, plus a staging area with
// promote-on-success semantics used during coupled solving.
//
// Implementations ship in store/memstore and store/badgerstore.
package store

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Values is a dense block of table values with per-entry presence: entries
// never written are invalid and read back as missing, never as zeros.
type Values struct {
	Data  []float64
	Valid *bitset.BitSet
}

// NewValues allocates an all-invalid block of n entries.
func NewValues(n int) Values {
	return Values{Data: make([]float64, n), Valid: bitset.New(uint(n))}
}

// Filled wraps data as an all-valid block.
func Filled(data []float64) Values {
	v := Values{Data: data, Valid: bitset.New(uint(len(data)))}
	for i := range data {
		v.Valid.Set(uint(i))
	}
	return v
}

// Len returns the number of entries.
func (v Values) Len() int { return len(v.Data) }

// Set stores x at i and marks it valid.
func (v Values) Set(i int, x float64) {
	v.Data[i] = x
	v.Valid.Set(uint(i))
}

// Get returns the entry at i and whether it has been written.
func (v Values) Get(i int) (float64, bool) {
	if !v.Valid.Test(uint(i)) {
		return 0, false
	}
	return v.Data[i], true
}

// AllValid reports whether every entry has been written.
func (v Values) AllValid() bool {
	n := uint(len(v.Data))
	return v.Valid.Count() >= n
}

// Clone returns an independent copy.
func (v Values) Clone() Values {
	return Values{
		Data:  append([]float64(nil), v.Data...),
		Valid: v.Valid.Clone(),
	}
}

// Reader reads table values at flat domain indices.
type Reader interface {
	// Read returns the values of table at the given indices, in order.
	// Entries never written come back invalid; that is not an error.
	Read(table string, indices []int) (Values, error)
}

// Writer registers tables and writes values at flat domain indices.
type Writer interface {
	// Register declares a table and its full domain size. Registering the
	// same table twice with the same size is a no-op.
	Register(table string, size int) error
	// Write stores the valid entries of vals at the given indices. Invalid
	// entries leave the stored value untouched.
	Write(table string, indices []int, vals Values) error
}

// Store is the authoritative value store.
type Store interface {
	Reader
	Writer
	// Stage opens a named working area layered over the store. Reads fall
	// through to the store for entries not written in the stage; writes stay
	// in the stage until Promote.
	Stage(name string) (Stage, error)
	Close() error
}

// Stage is a working area. Exactly one of Promote or Discard ends its life;
// the stage is unusable afterwards.
type Stage interface {
	Reader
	Writer
	// Promote publishes all staged writes to the underlying store.
	Promote() error
	// Discard drops all staged writes.
	Discard() error
}

// MissingDataError reports a required exogenous entry that was never loaded.
// It is scoped to the (scenario, problem) unit that needed the value; other
// units continue.
type MissingDataError struct {
	Table string
	Index int
	Tuple []string
}

func (e *MissingDataError) Error() string {
	if len(e.Tuple) > 0 {
		return fmt.Sprintf("missing data in table %q at %v", e.Table, e.Tuple)
	}
	return fmt.Sprintf("missing data in table %q at index %d", e.Table, e.Index)
}
