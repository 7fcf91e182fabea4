package run

import "fmt"

// ConvergenceFailure reports a coupling group whose shared values kept
// moving after the configured iteration cap. The staged pass is discarded,
// so the store keeps the values of the last converged pass, or none.
type ConvergenceFailure struct {
	Group      string
	Scenario   string
	Iterations int
	Delta      float64
	Tolerance  float64
}

func (e *ConvergenceFailure) Error() string {
	if e.Scenario == "" {
		return fmt.Sprintf("run: coupling group %q did not converge after %d iterations (delta %.4g, tolerance %.4g)",
			e.Group, e.Iterations, e.Delta, e.Tolerance)
	}
	return fmt.Sprintf("run: coupling group %q, scenario %q did not converge after %d iterations (delta %.4g, tolerance %.4g)",
		e.Group, e.Scenario, e.Iterations, e.Delta, e.Tolerance)
}
