package sets

import "fmt"

// Allocation partitions a table domain's non-inter-problem sets into a row
// set, a column set (either may be empty, meaning a trivial size-one axis)
// and zero or more intra-problem sets. A variable's allocation must cover
// each non-inter set of the domain exactly once.
type Allocation struct {
	Rows  string
	Cols  string
	Intra []string
}

// Axes returns the non-empty allocated set names in rows, cols, intra order.
func (a Allocation) Axes() []string {
	axes := make([]string, 0, 2+len(a.Intra))
	if a.Rows != "" {
		axes = append(axes, a.Rows)
	}
	if a.Cols != "" {
		axes = append(axes, a.Cols)
	}
	axes = append(axes, a.Intra...)
	return axes
}

// Validate checks the allocation against a table domain. Inter-problem sets
// are fixed per scenario and must not be allocated; every other set must be
// allocated exactly once.
func (a Allocation) Validate(d *Domain) error {
	seen := make(map[string]struct{})
	for _, name := range a.Axes() {
		pos, ok := d.Position(name)
		if !ok {
			return NewDimensionMismatch("allocate",
				"set %q is not part of the table domain %s", name, d)
		}
		if d.Set(pos).Role() == InterProblem {
			return NewDimensionMismatch("allocate",
				"set %q is inter-problem and cannot be allocated to a shape or intra axis", name)
		}
		if _, dup := seen[name]; dup {
			return NewDimensionMismatch("allocate", "set %q allocated twice", name)
		}
		seen[name] = struct{}{}
	}
	for _, s := range d.sets {
		if s.Role() == InterProblem {
			continue
		}
		if _, ok := seen[s.Name()]; !ok {
			return NewDimensionMismatch("allocate",
				"set %q of the table domain is not allocated", s.Name())
		}
	}
	return nil
}

// AxisSize returns the extent of the named axis under the allocation: the set
// length for an allocated set, 1 for the trivial empty axis.
func AxisSize(d *Domain, name string) (int, error) {
	if name == "" {
		return 1, nil
	}
	pos, ok := d.Position(name)
	if !ok {
		return 0, fmt.Errorf("axis size: set %q not in domain %s", name, d)
	}
	return d.Set(pos).Len(), nil
}
