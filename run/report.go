package run

import (
	"time"

	"github.com/couplex/couplex/solver"
)

// SolveReport describes one (problem, scenario) solve.
type SolveReport struct {
	Problem   string
	Scenario  string
	Status    solver.Status
	Objective float64
	Rows      int
	Cols      int
	Runtime   time.Duration
	Err       error
}

// GroupState is the terminal state of one (scenario, coupling group) unit.
type GroupState uint8

const (
	GroupInit GroupState = iota
	GroupIterating
	GroupConverged
	GroupMaxIterExceeded
	GroupSolverFailed
)

func (s GroupState) String() string {
	switch s {
	case GroupInit:
		return "init"
	case GroupIterating:
		return "iterating"
	case GroupConverged:
		return "converged"
	case GroupMaxIterExceeded:
		return "max iterations exceeded"
	case GroupSolverFailed:
		return "solver failed"
	default:
		return "unknown"
	}
}

// GroupReport describes the Gauss-Seidel iteration of one coupling group in
// one scenario.
type GroupReport struct {
	Group      string
	Scenario   string
	State      GroupState
	Iterations int
	Delta      float64
	Err        error
}

// Converged reports whether the group reached its fixed point.
func (g GroupReport) Converged() bool { return g.State == GroupConverged }

// Report aggregates the outcome of a session run. Unit failures are recorded
// here rather than aborting sibling solves.
type Report struct {
	Mode     Mode
	Duration time.Duration
	Solves   []SolveReport
	Groups   []GroupReport
}

// Failures collects the errors of failed solves and groups, in report order.
func (r *Report) Failures() []error {
	var errs []error
	for i := range r.Solves {
		if r.Solves[i].Err != nil {
			errs = append(errs, r.Solves[i].Err)
		}
	}
	for i := range r.Groups {
		if r.Groups[i].Err != nil {
			errs = append(errs, r.Groups[i].Err)
		}
	}
	return errs
}
