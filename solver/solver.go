package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/couplex/couplex/logger"
)

// Status classifies a solve outcome.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusNumError
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNumError:
		return "numerical error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is a successful solve: an optimal point and its objective value.
type Result struct {
	Status    Status
	Objective float64
	X         []float64
	Runtime   time.Duration
}

// Error reports a solve that produced no usable point.
type Error struct {
	Status Status
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("solver: %s", e.Status)
	}
	return fmt.Sprintf("solver: %s: %s", e.Status, e.Detail)
}

// Backend solves linear programs. Implementations must be safe for
// concurrent use; independent subproblems are solved in parallel.
type Backend interface {
	Name() string
	Solve(ctx context.Context, m *Model, opts ...Option) (*Result, error)
}

// Config collects backend options.
type Config struct {
	Tolerance float64
	Timeout   time.Duration
	Log       zerolog.Logger
}

// Option modifies a backend Config.
type Option func(*Config) error

// WithTolerance sets the backend convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(c *Config) error {
		if tol <= 0 {
			return fmt.Errorf("solver: tolerance must be positive, got %v", tol)
		}
		c.Tolerance = tol
		return nil
	}
}

// WithTimeout bounds a single solve. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("solver: negative timeout %v", d)
		}
		c.Timeout = d
		return nil
	}
}

// WithLogger routes backend logging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Config) error {
		c.Log = l
		return nil
	}
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) (Config, error) {
	c := Config{
		Tolerance: 1e-9,
		Log:       logger.Logger(),
	}
	for _, o := range opts {
		if err := o(&c); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}
