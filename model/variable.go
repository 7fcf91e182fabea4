package model

import (
	"errors"
	"fmt"

	"github.com/couplex/couplex/sets"
)

// Variable binds a data table to one row set, one column set (either may be
// empty, a trivial size-one axis) and zero or more intra-problem sets, with
// an optional sub-domain filter. Several Variables may view the same table
// under different allocations.
type Variable struct {
	name   string
	table  *DataTable
	alloc  sets.Allocation
	filter sets.Selection
}

// VariableOption configures a Variable at construction.
type VariableOption func(*Variable) error

// WithSelection restricts the variable to a sub-domain of its table.
func WithSelection(sel sets.Selection) VariableOption {
	return func(v *Variable) error {
		cp := make(sets.Selection, len(sel))
		for name, coords := range sel {
			cp[name] = append([]string(nil), coords...)
		}
		v.filter = cp
		return nil
	}
}

// NewVariable binds table under the given allocation. The allocation must
// partition the table's non-inter-problem sets exactly; the filter may only
// restrict allocated sets.
func NewVariable(name string, table *DataTable, alloc sets.Allocation, opts ...VariableOption) (*Variable, error) {
	if name == "" {
		return nil, errors.New("variable name must not be empty")
	}
	if table == nil {
		return nil, fmt.Errorf("variable %q: nil table", name)
	}
	if err := alloc.Validate(table.Domain()); err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	v := &Variable{name: name, table: table, alloc: alloc}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
	}
	if v.filter != nil {
		allocated := make(map[string]struct{})
		for _, a := range alloc.Axes() {
			allocated[a] = struct{}{}
		}
		for fs, coords := range v.filter {
			if _, ok := allocated[fs]; !ok {
				return nil, fmt.Errorf("variable %q: filter on %q, which is not an allocated set", name, fs)
			}
			pos, _ := table.Domain().Position(fs)
			set := table.Domain().Set(pos)
			for _, c := range coords {
				if _, ok := set.Index(c); !ok {
					return nil, fmt.Errorf("variable %q: filter coordinate %q not in set %q", name, c, fs)
				}
			}
		}
	}
	return v, nil
}

// MustNewVariable is NewVariable, panicking on error.
func MustNewVariable(name string, table *DataTable, alloc sets.Allocation, opts ...VariableOption) *Variable {
	v, err := NewVariable(name, table, alloc, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Table returns the bound table.
func (v *Variable) Table() *DataTable { return v.table }

// Allocation returns the axis allocation.
func (v *Variable) Allocation() sets.Allocation { return v.alloc }

// Selection returns the variable's sub-domain filter (nil if unfiltered).
func (v *Variable) Selection() sets.Selection {
	if v.filter == nil {
		return nil
	}
	cp := make(sets.Selection, len(v.filter))
	for name, coords := range v.filter {
		cp[name] = append([]string(nil), coords...)
	}
	return cp
}

// axisCoords returns the coordinates spanned by the named axis after the
// variable's filter: the filtered set coordinates, or a single blank label
// for the trivial empty axis.
func (v *Variable) axisCoords(axis string) []string {
	if axis == "" {
		return []string{""}
	}
	pos, _ := v.table.Domain().Position(axis)
	set := v.table.Domain().Set(pos)
	if coords, ok := v.filter[axis]; ok {
		kept := make([]string, 0, len(coords))
		for _, c := range set.Coords() {
			for _, f := range coords {
				if c == f {
					kept = append(kept, c)
					break
				}
			}
		}
		return kept
	}
	return set.Coords()
}

// Shape returns the (rows, cols) extent of the variable's value matrix.
func (v *Variable) Shape() (int, int) {
	return len(v.axisCoords(v.alloc.Rows)), len(v.axisCoords(v.alloc.Cols))
}

// RowCoords returns the row axis coordinates after filtering.
func (v *Variable) RowCoords() []string { return v.axisCoords(v.alloc.Rows) }

// ColCoords returns the column axis coordinates after filtering.
func (v *Variable) ColCoords() []string { return v.axisCoords(v.alloc.Cols) }

// IntraCoords returns the filtered coordinates of one of the variable's
// intra-problem sets.
func (v *Variable) IntraCoords(set string) []string { return v.axisCoords(set) }
