package run

import (
	"fmt"
	"runtime"

	"github.com/couplex/couplex/solver"
)

// Mode selects how subproblems are orchestrated.
type Mode uint8

const (
	// ModeIndependent solves every (problem, scenario) pair exactly once.
	ModeIndependent Mode = iota
	// ModeIntegrated additionally iterates coupling groups to a fixed point.
	ModeIntegrated
)

func (m Mode) String() string {
	switch m {
	case ModeIndependent:
		return "independent"
	case ModeIntegrated:
		return "integrated"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name to its value.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "independent":
		return ModeIndependent, nil
	case "integrated":
		return ModeIntegrated, nil
	default:
		return 0, fmt.Errorf("run: unknown mode %q", s)
	}
}

// MissingPolicy decides what a build does with exogenous entries that were
// never loaded.
type MissingPolicy uint8

const (
	// MissingError fails the affected unit with a store.MissingDataError.
	MissingError MissingPolicy = iota
	// MissingZero substitutes zero and continues.
	MissingZero
)

func (p MissingPolicy) String() string {
	switch p {
	case MissingError:
		return "error"
	case MissingZero:
		return "zero"
	default:
		return "unknown"
	}
}

// Norm selects the convergence metric of the Gauss-Seidel monitor.
type Norm uint8

const (
	// NormMaxAbs is the largest elementwise relative change.
	NormMaxAbs Norm = iota
	// NormRelL2 is the l2 norm of the change relative to the previous pass.
	NormRelL2
)

func (n Norm) String() string {
	switch n {
	case NormMaxAbs:
		return "max_abs"
	case NormRelL2:
		return "rel_l2"
	default:
		return "unknown"
	}
}

// ParseNorm maps a norm name to its value.
func ParseNorm(s string) (Norm, error) {
	switch s {
	case "max_abs":
		return NormMaxAbs, nil
	case "rel_l2":
		return NormRelL2, nil
	default:
		return 0, fmt.Errorf("run: unknown norm %q", s)
	}
}

// Defaults applied by NewSession when the corresponding Config field is
// left zero.
const (
	DefaultTolerance     = 0.01
	DefaultMaxIterations = 20
)

// Config controls a session. The zero value selects independent mode with
// the default tolerance, iteration cap and parallelism, erroring on missing
// exogenous data.
type Config struct {
	Mode          Mode
	Norm          Norm
	Missing       MissingPolicy
	Tolerance     float64
	MaxIterations int
	// Parallelism bounds concurrent subproblem solves. Zero means one per
	// available CPU.
	Parallelism int
	// BestEffort promotes the values of a coupling group that hit the
	// iteration cap instead of discarding them. The group still reports a
	// ConvergenceFailure.
	BestEffort    bool
	SolverOptions []solver.Option
}

func (c *Config) fillDefaults() {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
}
