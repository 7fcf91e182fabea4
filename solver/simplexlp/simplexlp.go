// Package simplexlp solves solver models with the gonum dense simplex
// method. Models are rewritten to the standard form the method expects:
// equality rows over nonnegative variables, with free columns split and
// bounded columns shifted.
package simplexlp

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/couplex/couplex/solver"
)

// Backend implements solver.Backend. The zero value is ready to use and
// safe for concurrent solves.
type Backend struct{}

// New returns a simplex backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return "simplexlp" }

func (*Backend) Solve(ctx context.Context, m *solver.Model, opts ...solver.Option) (*solver.Result, error) {
	cfg, err := solver.NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	sf := toStandardForm(m)

	type answer struct {
		y   []float64
		err error
	}
	done := make(chan answer, 1)
	go func() {
		y, err := sf.solve(cfg.Tolerance)
		done <- answer{y: y, err: err}
	}()

	var y []float64
	select {
	case <-ctx.Done():
		// The simplex worker cannot be interrupted; it is abandoned and its
		// buffered answer dropped.
		return nil, &solver.Error{Status: solver.StatusTimeout, Detail: ctx.Err().Error()}
	case a := <-done:
		if a.err != nil {
			return nil, mapError(a.err)
		}
		y = a.y
	}

	x := sf.original(y)
	obj := m.ObjConst
	for j, c := range m.Obj {
		obj += c * x[j]
	}
	return &solver.Result{
		Status:    solver.StatusOptimal,
		Objective: obj,
		X:         x,
		Runtime:   time.Since(start),
	}, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return &solver.Error{Status: solver.StatusInfeasible, Detail: err.Error()}
	case errors.Is(err, lp.ErrUnbounded):
		return &solver.Error{Status: solver.StatusUnbounded, Detail: err.Error()}
	default:
		return &solver.Error{Status: solver.StatusNumError, Detail: err.Error()}
	}
}

// stdTerm is one standard-form column contributing coef*y to an original
// column's value.
type stdTerm struct {
	col  int
	coef float64
}

// standardForm is minimize c*y subject to A*y == b, y >= 0, plus the affine
// map y -> x back to the original columns.
type standardForm struct {
	cols int
	c    []float64
	rows int
	a    []float64 // dense, row-major
	b    []float64

	base  []float64 // per original column
	terms [][]stdTerm
	flip  bool // original sense was Maximize
	nOrig int
}

type pendingRow struct {
	terms []stdTerm
	rhs   float64
	rel   solver.Rel
}

func toStandardForm(m *solver.Model) *standardForm {
	sf := &standardForm{
		flip:  m.Sense == solver.Maximize,
		nOrig: m.Cols,
		base:  make([]float64, m.Cols),
		terms: make([][]stdTerm, m.Cols),
	}

	var bounds []pendingRow
	for j := 0; j < m.Cols; j++ {
		lo, hi := m.Bound(j)
		switch {
		case math.IsInf(lo, -1) && math.IsInf(hi, 1):
			// Free: x = y+ - y-.
			p, n := sf.newCol(), sf.newCol()
			sf.terms[j] = []stdTerm{{p, 1}, {n, -1}}
		case math.IsInf(hi, 1):
			// x = lo + y.
			sf.base[j] = lo
			sf.terms[j] = []stdTerm{{sf.newCol(), 1}}
		case math.IsInf(lo, -1):
			// x = hi - y.
			sf.base[j] = hi
			sf.terms[j] = []stdTerm{{sf.newCol(), -1}}
		default:
			// x = lo + y with y + s = hi - lo.
			sf.base[j] = lo
			y := sf.newCol()
			sf.terms[j] = []stdTerm{{y, 1}}
			s := sf.newCol()
			bounds = append(bounds, pendingRow{
				terms: []stdTerm{{y, 1}, {s, 1}},
				rhs:   hi - lo,
				rel:   solver.RelEq,
			})
		}
	}

	var rows []pendingRow
	for i := 0; i < m.Rows(); i++ {
		row := pendingRow{rel: m.Rel[i], rhs: m.RHS[i]}
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			j, a := m.ColIdx[k], m.Coef[k]
			if a == 0 {
				continue
			}
			row.rhs -= a * sf.base[j]
			for _, t := range sf.terms[j] {
				row.terms = append(row.terms, stdTerm{t.col, a * t.coef})
			}
		}
		rows = append(rows, row)
	}
	rows = append(rows, bounds...)

	// Slack out inequalities, then lay down the dense matrix.
	for i := range rows {
		switch rows[i].rel {
		case solver.RelLe:
			rows[i].terms = append(rows[i].terms, stdTerm{sf.newCol(), 1})
		case solver.RelGe:
			rows[i].terms = append(rows[i].terms, stdTerm{sf.newCol(), -1})
		}
	}

	sf.rows = len(rows)
	sf.a = make([]float64, sf.rows*sf.cols)
	sf.b = make([]float64, sf.rows)
	for i, row := range rows {
		sf.b[i] = row.rhs
		for _, t := range row.terms {
			sf.a[i*sf.cols+t.col] += t.coef
		}
	}

	sf.c = make([]float64, sf.cols)
	for j, cj := range m.Obj {
		if sf.flip {
			cj = -cj
		}
		for _, t := range sf.terms[j] {
			sf.c[t.col] += cj * t.coef
		}
	}
	return sf
}

func (sf *standardForm) newCol() int {
	sf.cols++
	return sf.cols - 1
}

func (sf *standardForm) solve(tol float64) ([]float64, error) {
	if sf.cols == 0 {
		return nil, nil
	}
	if sf.rows == 0 {
		// Unconstrained over y >= 0: either y = 0 is optimal or the problem
		// has no finite optimum.
		for _, cj := range sf.c {
			if cj < 0 {
				return nil, lp.ErrUnbounded
			}
		}
		return make([]float64, sf.cols), nil
	}
	a := mat.NewDense(sf.rows, sf.cols, sf.a)
	_, y, err := lp.Simplex(sf.c, a, sf.b, tol, nil)
	if err != nil {
		return nil, err
	}
	return y, nil
}

// original maps a standard-form point back to the model's columns.
func (sf *standardForm) original(y []float64) []float64 {
	x := make([]float64, sf.nOrig)
	for j := range x {
		x[j] = sf.base[j]
		for _, t := range sf.terms[j] {
			x[j] += t.coef * y[t.col]
		}
	}
	return x
}
