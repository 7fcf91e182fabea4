package model

import "fmt"

// ValueKind is the numeric kind of a data table's entries.
type ValueKind uint8

const (
	Real ValueKind = iota
	Integer
	Binary
)

func (k ValueKind) String() string {
	switch k {
	case Real:
		return "real"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// RoleKind classifies how a table's values are produced.
type RoleKind uint8

const (
	// RoleExogenous values are supplied externally before solving.
	RoleExogenous RoleKind = iota
	// RoleEndogenous values are produced by the solver.
	RoleEndogenous
	// RoleConstant values are produced by a named generator from the table
	// shape.
	RoleConstant
	// RolePerSubproblem resolves to exogenous or endogenous per subproblem,
	// for tables exchanged inside a coupling group.
	RolePerSubproblem
)

func (k RoleKind) String() string {
	switch k {
	case RoleExogenous:
		return "exogenous"
	case RoleEndogenous:
		return "endogenous"
	case RoleConstant:
		return "constant"
	case RolePerSubproblem:
		return "per-subproblem"
	default:
		return fmt.Sprintf("role(%d)", uint8(k))
	}
}

// Role is a tagged variant describing a table's data role. Per-subproblem
// roles carry an explicit subproblem-name mapping resolved at build time.
type Role struct {
	kind      RoleKind
	generator string
	per       map[string]RoleKind
}

// Exogenous marks a table as externally supplied.
func Exogenous() Role { return Role{kind: RoleExogenous} }

// Endogenous marks a table as solver output.
func Endogenous() Role { return Role{kind: RoleEndogenous} }

// Constant marks a table as generated by the named constant generator.
func Constant(generator string) Role {
	return Role{kind: RoleConstant, generator: generator}
}

// PerSubproblem scopes the exogenous/endogenous role per subproblem name.
// Subproblems absent from the mapping treat the table as exogenous.
func PerSubproblem(per map[string]RoleKind) Role {
	cp := make(map[string]RoleKind, len(per))
	for k, v := range per {
		cp[k] = v
	}
	return Role{kind: RolePerSubproblem, per: cp}
}

// Kind returns the role tag.
func (r Role) Kind() RoleKind { return r.kind }

// Generator returns the constant generator name ("" unless RoleConstant).
func (r Role) Generator() string { return r.generator }

// Resolve returns the concrete role of the table for one subproblem:
// RolePerSubproblem maps through its table, everything else is returned
// unchanged.
func (r Role) Resolve(subproblem string) RoleKind {
	if r.kind != RolePerSubproblem {
		return r.kind
	}
	if k, ok := r.per[subproblem]; ok {
		return k
	}
	return RoleExogenous
}

// IsEndogenousFor reports whether the table is solver output for the given
// subproblem.
func (r Role) IsEndogenousFor(subproblem string) bool {
	return r.Resolve(subproblem) == RoleEndogenous
}

// MayBeEndogenous reports whether any subproblem sees the table as
// endogenous.
func (r Role) MayBeEndogenous() bool {
	if r.kind == RoleEndogenous {
		return true
	}
	for _, k := range r.per {
		if k == RoleEndogenous {
			return true
		}
	}
	return false
}

func (r Role) validate() error {
	switch r.kind {
	case RoleExogenous, RoleEndogenous:
		return nil
	case RoleConstant:
		if r.generator == "" {
			return fmt.Errorf("constant role requires a generator name")
		}
		return nil
	case RolePerSubproblem:
		if len(r.per) == 0 {
			return fmt.Errorf("per-subproblem role requires at least one mapping")
		}
		for name, k := range r.per {
			if k != RoleExogenous && k != RoleEndogenous {
				return fmt.Errorf("per-subproblem role for %q must be exogenous or endogenous, got %s", name, k)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown role kind %d", r.kind)
	}
}
