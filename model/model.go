package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/couplex/couplex/sets"
)

// Model aggregates the full symbolic description: sets, tables, variables and
// problems. It is assembled once, validated with Validate, and is read-only
// afterwards.
type Model struct {
	name     string
	sets     []*sets.Set
	setIdx   map[string]*sets.Set
	tables   []*DataTable
	tableIdx map[string]*DataTable
	vars     []*Variable
	varIdx   map[string]*Variable
	problems []*Problem
	probIdx  map[string]*Problem
}

// New creates an empty model.
func New(name string) *Model {
	return &Model{
		name:     name,
		setIdx:   make(map[string]*sets.Set),
		tableIdx: make(map[string]*DataTable),
		varIdx:   make(map[string]*Variable),
		probIdx:  make(map[string]*Problem),
	}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// AddSet registers a set. Set names are globally unique.
func (m *Model) AddSet(s *sets.Set) error {
	if s == nil {
		return errors.New("nil set")
	}
	if _, dup := m.setIdx[s.Name()]; dup {
		return fmt.Errorf("set %q already defined", s.Name())
	}
	m.sets = append(m.sets, s)
	m.setIdx[s.Name()] = s
	return nil
}

// AddTable registers a data table. Every set of its domain must be the
// registered instance.
func (m *Model) AddTable(t *DataTable) error {
	if t == nil {
		return errors.New("nil table")
	}
	if _, dup := m.tableIdx[t.Name()]; dup {
		return fmt.Errorf("table %q already defined", t.Name())
	}
	for _, s := range t.Domain().Sets() {
		reg, ok := m.setIdx[s.Name()]
		if !ok {
			return fmt.Errorf("table %q: set %q is not registered in the model", t.Name(), s.Name())
		}
		if reg != s {
			return fmt.Errorf("table %q: set %q differs from the registered set of that name", t.Name(), s.Name())
		}
	}
	m.tables = append(m.tables, t)
	m.tableIdx[t.Name()] = t
	return nil
}

// AddVariable registers a variable. Its table must be registered and the
// variable name must not collide with other variables.
func (m *Model) AddVariable(v *Variable) error {
	if v == nil {
		return errors.New("nil variable")
	}
	if _, dup := m.varIdx[v.Name()]; dup {
		return fmt.Errorf("variable %q already defined", v.Name())
	}
	if reg, ok := m.tableIdx[v.Table().Name()]; !ok || reg != v.Table() {
		return fmt.Errorf("variable %q: table %q is not registered in the model", v.Name(), v.Table().Name())
	}
	m.vars = append(m.vars, v)
	m.varIdx[v.Name()] = v
	return nil
}

// AddProblem registers a problem.
func (m *Model) AddProblem(p *Problem) error {
	if p == nil {
		return errors.New("nil problem")
	}
	if _, dup := m.probIdx[p.Name()]; dup {
		return fmt.Errorf("problem %q already defined", p.Name())
	}
	m.problems = append(m.problems, p)
	m.probIdx[p.Name()] = p
	return nil
}

// Set returns a registered set by name.
func (m *Model) Set(name string) (*sets.Set, bool) {
	s, ok := m.setIdx[name]
	return s, ok
}

// Table returns a registered table by name.
func (m *Model) Table(name string) (*DataTable, bool) {
	t, ok := m.tableIdx[name]
	return t, ok
}

// Variable returns a registered variable by name.
func (m *Model) Variable(name string) (*Variable, bool) {
	v, ok := m.varIdx[name]
	return v, ok
}

// Problem returns a registered problem by name.
func (m *Model) Problem(name string) (*Problem, bool) {
	p, ok := m.probIdx[name]
	return p, ok
}

// Sets returns the registered sets in declaration order.
func (m *Model) Sets() []*sets.Set { return append([]*sets.Set(nil), m.sets...) }

// Tables returns the registered tables in declaration order.
func (m *Model) Tables() []*DataTable { return append([]*DataTable(nil), m.tables...) }

// Variables returns the registered variables in declaration order.
func (m *Model) Variables() []*Variable { return append([]*Variable(nil), m.vars...) }

// Problems returns the registered problems in declaration order.
func (m *Model) Problems() []*Problem { return append([]*Problem(nil), m.problems...) }

// InterSets returns the inter-problem sets in declaration order.
func (m *Model) InterSets() []*sets.Set {
	var r []*sets.Set
	for _, s := range m.sets {
		if s.Role() == sets.InterProblem {
			r = append(r, s)
		}
	}
	return r
}

// Scenarios enumerates the Cartesian product of the inter-problem sets in
// declaration order. A model without inter-problem sets has exactly one
// scenario.
func (m *Model) Scenarios() []Scenario {
	return enumerateScenarios(m.InterSets())
}

// CouplingGroup is a named group of problems solved together by block
// Gauss-Seidel iteration, ordered by their declared position.
type CouplingGroup struct {
	Name     string
	Problems []*Problem
}

// CouplingGroups returns the coupling groups sorted by name, each with its
// problems sorted by declared order.
func (m *Model) CouplingGroups() []CouplingGroup {
	byName := make(map[string][]*Problem)
	for _, p := range m.problems {
		if p.Group() != "" {
			byName[p.Group()] = append(byName[p.Group()], p)
		}
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	groups := make([]CouplingGroup, 0, len(names))
	for _, n := range names {
		ps := byName[n]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Order() < ps[j].Order() })
		groups = append(groups, CouplingGroup{Name: n, Problems: ps})
	}
	return groups
}

// UncoupledProblems returns the problems outside any coupling group, in
// declaration order.
func (m *Model) UncoupledProblems() []*Problem {
	var r []*Problem
	for _, p := range m.problems {
		if p.Group() == "" {
			r = append(r, p)
		}
	}
	return r
}

// ProblemVariables returns the variables referenced by a problem's
// expressions, in first-reference order.
func (m *Model) ProblemVariables(p *Problem) ([]*Variable, error) {
	var r []*Variable
	seen := make(map[string]struct{})
	for _, e := range p.Expressions() {
		for _, name := range Refs(e.Root) {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			v, ok := m.varIdx[name]
			if !ok {
				return nil, fmt.Errorf("problem %q: expression references unknown variable %q", p.Name(), name)
			}
			r = append(r, v)
		}
	}
	return r, nil
}

// ProblemTables returns the distinct tables referenced by a problem, in
// first-reference order.
func (m *Model) ProblemTables(p *Problem) ([]*DataTable, error) {
	vars, err := m.ProblemVariables(p)
	if err != nil {
		return nil, err
	}
	var r []*DataTable
	seen := make(map[string]struct{})
	for _, v := range vars {
		if _, dup := seen[v.Table().Name()]; dup {
			continue
		}
		seen[v.Table().Name()] = struct{}{}
		r = append(r, v.Table())
	}
	return r, nil
}

// Validate checks the model structure: reference resolution, per-problem
// expression rules, and coupling-group role consistency. Structural errors
// abort a run before any numeric work.
func (m *Model) Validate() error {
	if len(m.problems) == 0 {
		return fmt.Errorf("model %q: no problems defined", m.name)
	}
	for _, p := range m.problems {
		if len(p.Constraints()) == 0 {
			return fmt.Errorf("problem %q: at least one constraint required", p.Name())
		}
		if _, ok := p.Objective(); !ok && !p.Feasibility() {
			return &MissingObjectiveError{Problem: p.Name()}
		}
		if _, err := m.ProblemVariables(p); err != nil {
			return err
		}
	}
	for _, g := range m.CouplingGroups() {
		if err := m.validateGroup(g); err != nil {
			return err
		}
	}
	return nil
}

// validateGroup checks one coupling group: distinct solve orders, and a
// resolved role assignment in which every shared table has exactly one
// producing subproblem.
func (m *Model) validateGroup(g CouplingGroup) error {
	if len(g.Problems) < 2 {
		return fmt.Errorf("coupling group %q: at least two subproblems required", g.Name)
	}
	orders := make(map[int]string, len(g.Problems))
	for _, p := range g.Problems {
		if other, dup := orders[p.Order()]; dup {
			return fmt.Errorf("coupling group %q: problems %q and %q share solve order %d",
				g.Name, other, p.Name(), p.Order())
		}
		orders[p.Order()] = p.Name()
	}
	producers := make(map[string][]string) // table -> producing subproblems
	for _, p := range g.Problems {
		tables, err := m.ProblemTables(p)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if t.Role().Resolve(p.Name()) == RoleEndogenous {
				producers[t.Name()] = append(producers[t.Name()], p.Name())
			}
		}
	}
	for table, owners := range producers {
		if len(owners) > 1 {
			sort.Strings(owners)
			return &CircularDependencyError{Group: g.Name, Table: table, Subproblems: owners}
		}
	}
	return nil
}
