package model

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports a coupling group whose resolved
// exogenous/endogenous role assignment feeds a table's values back into the
// subproblem that produces them.
type CircularDependencyError struct {
	Group       string
	Table       string
	Subproblems []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency in coupling group %q: table %q is endogenous for %s",
		e.Group, e.Table, strings.Join(e.Subproblems, ", "))
}

// MissingObjectiveError reports a problem meant to be optimized that declares
// no objective expression.
type MissingObjectiveError struct {
	Problem string
}

func (e *MissingObjectiveError) Error() string {
	return fmt.Sprintf("problem %q declares no objective; mark it as a feasibility problem or add one", e.Problem)
}
