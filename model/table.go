package model

import (
	"errors"
	"fmt"

	"github.com/couplex/couplex/sets"
)

// DataTable maps domain tuples to scalar values. The table itself is
// definition only; values live behind the store contract and are addressed by
// the domain's flat row-major index.
type DataTable struct {
	name   string
	domain *sets.Domain
	kind   ValueKind
	role   Role
}

// NewDataTable defines a table over a domain.
func NewDataTable(name string, domain *sets.Domain, kind ValueKind, role Role) (*DataTable, error) {
	if name == "" {
		return nil, errors.New("table name must not be empty")
	}
	if domain == nil {
		return nil, fmt.Errorf("table %q: nil domain", name)
	}
	if err := role.validate(); err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}
	if role.Kind() == RoleConstant {
		for _, s := range domain.Sets() {
			if s.Role() == sets.InterProblem {
				return nil, fmt.Errorf("table %q: constant tables cannot span inter-problem set %q", name, s.Name())
			}
		}
	}
	return &DataTable{name: name, domain: domain, kind: kind, role: role}, nil
}

// MustNewDataTable is NewDataTable, panicking on error.
func MustNewDataTable(name string, domain *sets.Domain, kind ValueKind, role Role) *DataTable {
	t, err := NewDataTable(name, domain, kind, role)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the table name.
func (t *DataTable) Name() string { return t.name }

// Domain returns the table domain.
func (t *DataTable) Domain() *sets.Domain { return t.domain }

// Kind returns the value kind.
func (t *DataTable) Kind() ValueKind { return t.kind }

// Role returns the data role.
func (t *DataTable) Role() Role { return t.role }

// InterSets returns the inter-problem sets of the domain, in domain order.
func (t *DataTable) InterSets() []*sets.Set {
	var r []*sets.Set
	for _, s := range t.domain.Sets() {
		if s.Role() == sets.InterProblem {
			r = append(r, s)
		}
	}
	return r
}

// InnerSize returns the table size once inter-problem sets are fixed: the
// product of the non-inter set lengths.
func (t *DataTable) InnerSize() int {
	n := 1
	for _, s := range t.domain.Sets() {
		if s.Role() != sets.InterProblem {
			n *= s.Len()
		}
	}
	return n
}
