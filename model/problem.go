package model

import (
	"errors"
	"fmt"
)

// Problem is a named collection of expressions solved as one unit: at least
// one constraint and at most one objective, all sharing the model's
// inter-problem sets. Problems in the same coupling group are solved
// iteratively in declared order.
type Problem struct {
	name        string
	exprs       []Expression
	feasibility bool
	group       string
	order       int
}

// ProblemOption configures a Problem at construction.
type ProblemOption func(*Problem) error

// InGroup places the problem in a coupling group with a solve position
// inside the group's Gauss-Seidel pass.
func InGroup(group string, order int) ProblemOption {
	return func(p *Problem) error {
		if group == "" {
			return errors.New("coupling group name must not be empty")
		}
		p.group = group
		p.order = order
		return nil
	}
}

// AsFeasibility marks the problem as a feasibility solve: no objective is
// required and a constant zero objective is used.
func AsFeasibility() ProblemOption {
	return func(p *Problem) error {
		p.feasibility = true
		return nil
	}
}

// NewProblem creates an empty problem.
func NewProblem(name string, opts ...ProblemOption) (*Problem, error) {
	if name == "" {
		return nil, errors.New("problem name must not be empty")
	}
	p := &Problem{name: name}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("problem %q: %w", name, err)
		}
	}
	return p, nil
}

// MustNewProblem is NewProblem, panicking on error.
func MustNewProblem(name string, opts ...ProblemOption) *Problem {
	p, err := NewProblem(name, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// AddExpression appends a constraint or objective expression. The root must
// be a relation or an objective marker, and a problem holds at most one
// objective.
func (p *Problem) AddExpression(label string, root Node) error {
	e := Expression{Label: label, Root: root}
	if !e.IsConstraint() && !e.IsObjective() {
		return fmt.Errorf("problem %q: expression %q must be a relation (==, <=, >=) or an objective (Minimize, Maximize)", p.name, label)
	}
	if e.IsObjective() {
		if _, ok := p.Objective(); ok {
			return fmt.Errorf("problem %q: objective declared twice", p.name)
		}
	}
	p.exprs = append(p.exprs, e)
	return nil
}

// MustAddExpression is AddExpression, panicking on error.
func (p *Problem) MustAddExpression(label string, root Node) {
	if err := p.AddExpression(label, root); err != nil {
		panic(err)
	}
}

// Name returns the problem name.
func (p *Problem) Name() string { return p.name }

// Group returns the coupling group name, "" when uncoupled.
func (p *Problem) Group() string { return p.group }

// Order returns the solve position inside the coupling group.
func (p *Problem) Order() int { return p.order }

// Feasibility reports whether the problem is a feasibility solve.
func (p *Problem) Feasibility() bool { return p.feasibility }

// Expressions returns the declared expressions, in declaration order.
func (p *Problem) Expressions() []Expression {
	return append([]Expression(nil), p.exprs...)
}

// Constraints returns the constraint expressions, in declaration order.
func (p *Problem) Constraints() []Expression {
	var r []Expression
	for _, e := range p.exprs {
		if e.IsConstraint() {
			r = append(r, e)
		}
	}
	return r
}

// Objective returns the objective expression if one is declared.
func (p *Problem) Objective() (Expression, bool) {
	for _, e := range p.exprs {
		if e.IsObjective() {
			return e, true
		}
	}
	return Expression{}, false
}
