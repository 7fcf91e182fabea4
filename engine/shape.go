package engine

import (
	"fmt"
	"math"

	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/sets"
)

// extent is the shape of a subexpression worked out without touching any
// values. A variable's shape never depends on the expansion tuple, so one
// pass over the tree covers every instance of every scenario. Operators
// whose extent depends on a runtime value (a shift length read from a
// table, a user-registered operator) leave it unknown; an unknown extent
// composes with anything and is settled at build time.
type extent struct {
	rows, cols int
	known      bool
	lit        float64
	isLit      bool
}

var unknownExtent = extent{}

func knownExtent(r, c int) extent { return extent{rows: r, cols: c, known: true} }

func litExtent(v float64) extent {
	return extent{rows: 1, cols: 1, known: true, lit: v, isLit: true}
}

func (e extent) scalar() bool { return e.rows == 1 && e.cols == 1 }

// broadcastExtent resolves the elementwise result extent under the same
// rules as broadcastShape.
func broadcastExtent(op string, a, b extent) (extent, error) {
	if !a.known || !b.known {
		return unknownExtent, nil
	}
	r, okr := bcDim(a.rows, b.rows)
	c, okc := bcDim(a.cols, b.cols)
	if !okr || !okc {
		return unknownExtent, sets.NewDimensionMismatch(op, "cannot broadcast %dx%d with %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	return knownExtent(r, c), nil
}

// checkShapes verifies dimensional consistency of every expression exactly
// once, at definition time, before any unit is built or solved. A mismatch
// here is a broken model definition and fails the whole builder.
func (b *Builder) checkShapes() error {
	for _, p := range b.model.Problems() {
		for _, expr := range p.Expressions() {
			if err := b.checkRootExtent(expr); err != nil {
				return fmt.Errorf("problem %q, expression %q: %w", p.Name(), expr.Label, err)
			}
		}
	}
	return nil
}

func (b *Builder) checkRootExtent(expr model.Expression) error {
	root := expr.Root.(*model.Call)
	if isObjectiveOp(root.Op) {
		e, err := b.extentOf(root.Args[0])
		if err != nil {
			return err
		}
		if e.known && !e.scalar() {
			return sets.NewDimensionMismatch(root.Op, "objective must be scalar, got %dx%d", e.rows, e.cols)
		}
		return nil
	}
	l, err := b.extentOf(root.Args[0])
	if err != nil {
		return err
	}
	r, err := b.extentOf(root.Args[1])
	if err != nil {
		return err
	}
	_, err = broadcastExtent(root.Op, l, r)
	return err
}

func (b *Builder) extentOf(n model.Node) (extent, error) {
	switch t := n.(type) {
	case *model.Num:
		return litExtent(t.Value), nil
	case *model.Ref:
		v, ok := b.model.Variable(t.Name)
		if !ok {
			return unknownExtent, fmt.Errorf("engine: unknown variable %q", t.Name)
		}
		r, c := v.Shape()
		return knownExtent(r, c), nil
	case *model.Call:
		return b.callExtent(t)
	default:
		return unknownExtent, fmt.Errorf("engine: unsupported node %T", n)
	}
}

func (b *Builder) callExtent(call *model.Call) (extent, error) {
	args := make([]extent, len(call.Args))
	for i, a := range call.Args {
		e, err := b.extentOf(a)
		if err != nil {
			return unknownExtent, err
		}
		args[i] = e
	}

	switch call.Op {
	case "+", "-", "*", "mult", "/", "pow":
		return broadcastExtent(call.Op, args[0], args[1])
	case "neg":
		if args[0].isLit {
			return litExtent(-args[0].lit), nil
		}
		return args[0], nil
	case "@":
		a, c := args[0], args[1]
		if !a.known || !c.known {
			return unknownExtent, nil
		}
		if a.cols != c.rows {
			return unknownExtent, sets.NewDimensionMismatch("@", "inner dimensions %dx%d @ %dx%d", a.rows, a.cols, c.rows, c.cols)
		}
		return knownExtent(a.rows, c.cols), nil
	case "tran":
		if !args[0].known {
			return unknownExtent, nil
		}
		return knownExtent(args[0].cols, args[0].rows), nil
	case "diag":
		a := args[0]
		if !a.known {
			return unknownExtent, nil
		}
		switch {
		case a.cols == 1:
			return knownExtent(a.rows, a.rows), nil
		case a.rows == 1:
			return knownExtent(a.cols, a.cols), nil
		default:
			return unknownExtent, sets.NewDimensionMismatch("diag", "want a vector, got %dx%d", a.rows, a.cols)
		}
	case "sum":
		return knownExtent(1, 1), nil
	case "minv":
		a := args[0]
		if !a.known {
			return unknownExtent, nil
		}
		if a.rows != a.cols || a.rows == 0 {
			return unknownExtent, sets.NewDimensionMismatch("minv", "want a square matrix, got %dx%d", a.rows, a.cols)
		}
		return a, nil
	case "annuity":
		for _, a := range args {
			if a.known && !a.scalar() {
				return unknownExtent, sets.NewDimensionMismatch("annuity", "want a scalar, got %dx%d", a.rows, a.cols)
			}
		}
		return knownExtent(1, 1), nil
	case "shift":
		return shiftExtent(args[0], args[1])
	case "weib":
		return weibExtent(args)
	default:
		// user-registered operator: arguments are checked above, the
		// result extent is settled at build time
		return unknownExtent, nil
	}
}

func shiftExtent(length, shifts extent) (extent, error) {
	if length.known && !length.scalar() {
		return unknownExtent, sets.NewDimensionMismatch("shift", "axis length must be a scalar, got %dx%d", length.rows, length.cols)
	}
	if !length.isLit {
		return unknownExtent, nil
	}
	n := int(math.Round(length.lit))
	if n <= 0 {
		return unknownExtent, sets.NewDimensionMismatch("shift", "axis length must be positive, got %v", length.lit)
	}
	if shifts.known {
		ok := shifts.scalar() ||
			(shifts.rows == n && shifts.cols == 1) ||
			(shifts.rows == 1 && shifts.cols == n)
		if !ok {
			return unknownExtent, sets.NewDimensionMismatch("shift", "offsets must be a scalar or a length-%d vector, got %dx%d", n, shifts.rows, shifts.cols)
		}
	}
	return knownExtent(n, n), nil
}

func weibExtent(args []extent) (extent, error) {
	for _, a := range args {
		if a.known && !a.scalar() {
			return unknownExtent, sets.NewDimensionMismatch("weib", "want a scalar, got %dx%d", a.rows, a.cols)
		}
	}
	rng, dim := args[2], args[3]
	if !rng.isLit || !dim.isLit {
		return unknownExtent, nil
	}
	n := int(math.Round(rng.lit))
	if n <= 0 {
		return unknownExtent, sets.NewDimensionMismatch("weib", "range must be positive, got %v", rng.lit)
	}
	switch int(math.Round(dim.lit)) {
	case 1:
		return knownExtent(n, 1), nil
	case 2:
		return knownExtent(n, n), nil
	default:
		return unknownExtent, nil
	}
}
