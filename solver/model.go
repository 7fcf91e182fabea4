package solver

import (
	"fmt"
	"math"
)

// Sense is the optimization direction.
type Sense uint8

const (
	Minimize Sense = iota
	Maximize
)

func (s Sense) String() string {
	switch s {
	case Minimize:
		return "minimize"
	case Maximize:
		return "maximize"
	default:
		return "unknown"
	}
}

// Rel is a constraint relation.
type Rel uint8

const (
	RelEq Rel = iota
	RelLe
	RelGe
)

func (r Rel) String() string {
	switch r {
	case RelEq:
		return "=="
	case RelLe:
		return "<="
	case RelGe:
		return ">="
	default:
		return "unknown"
	}
}

// Model is a linear program. The constraint matrix is stored in compressed
// sparse row form: row i owns ColIdx[RowPtr[i]:RowPtr[i+1]] and the matching
// Coef range, and reads RHS[i] with relation Rel[i]. Column bounds default
// to free when Lower and Upper are nil.
type Model struct {
	Cols     int
	Sense    Sense
	Obj      []float64
	ObjConst float64

	RowPtr []int
	ColIdx []int
	Coef   []float64
	Rel    []Rel
	RHS    []float64

	Lower []float64
	Upper []float64
}

// Rows returns the number of constraint rows.
func (m *Model) Rows() int {
	if len(m.RowPtr) == 0 {
		return 0
	}
	return len(m.RowPtr) - 1
}

// NNZ returns the number of stored coefficients.
func (m *Model) NNZ() int { return len(m.Coef) }

// Bound returns the bounds of column j, defaulting to (-Inf, +Inf).
func (m *Model) Bound(j int) (lo, hi float64) {
	lo, hi = math.Inf(-1), math.Inf(1)
	if m.Lower != nil {
		lo = m.Lower[j]
	}
	if m.Upper != nil {
		hi = m.Upper[j]
	}
	return lo, hi
}

// Validate checks structural consistency.
func (m *Model) Validate() error {
	if m.Cols < 0 {
		return fmt.Errorf("solver: negative column count %d", m.Cols)
	}
	if len(m.Obj) != m.Cols {
		return fmt.Errorf("solver: objective has %d entries for %d columns", len(m.Obj), m.Cols)
	}
	if m.Lower != nil && len(m.Lower) != m.Cols {
		return fmt.Errorf("solver: lower bounds have %d entries for %d columns", len(m.Lower), m.Cols)
	}
	if m.Upper != nil && len(m.Upper) != m.Cols {
		return fmt.Errorf("solver: upper bounds have %d entries for %d columns", len(m.Upper), m.Cols)
	}
	rows := m.Rows()
	if len(m.Rel) != rows || len(m.RHS) != rows {
		return fmt.Errorf("solver: %d rows but %d relations and %d right-hand sides", rows, len(m.Rel), len(m.RHS))
	}
	if len(m.ColIdx) != len(m.Coef) {
		return fmt.Errorf("solver: %d column indices for %d coefficients", len(m.ColIdx), len(m.Coef))
	}
	if rows > 0 {
		if m.RowPtr[0] != 0 {
			return fmt.Errorf("solver: row pointer must start at 0, got %d", m.RowPtr[0])
		}
		if m.RowPtr[rows] != len(m.Coef) {
			return fmt.Errorf("solver: row pointer ends at %d, want %d", m.RowPtr[rows], len(m.Coef))
		}
		for i := 0; i < rows; i++ {
			if m.RowPtr[i] > m.RowPtr[i+1] {
				return fmt.Errorf("solver: row pointer not monotonic at row %d", i)
			}
		}
	}
	for _, j := range m.ColIdx {
		if j < 0 || j >= m.Cols {
			return fmt.Errorf("solver: column index %d out of range [0,%d)", j, m.Cols)
		}
	}
	return nil
}
