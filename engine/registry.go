package engine

import (
	"fmt"
	"math"

	"github.com/couplex/couplex/sets"
)

// EvalFunc applies an operator to already-evaluated arguments.
type EvalFunc func(args []*Matrix) (*Matrix, error)

// OpSpec describes an operator: its argument count and its evaluation.
type OpSpec struct {
	Arity int
	Eval  EvalFunc
}

// ConstantFunc generates the numeric matrix of a constant table for a given
// variable shape.
type ConstantFunc func(rows, cols int) (*Matrix, error)

// Registry maps operator and constant-generator names to implementations.
// Each builder owns its own registry, so registering extensions never leaks
// across models.
type Registry struct {
	ops       map[string]OpSpec
	constants map[string]ConstantFunc
}

// RegisterOperator adds an operator. Redefining a name is an error.
func (r *Registry) RegisterOperator(name string, spec OpSpec) error {
	if name == "" {
		return fmt.Errorf("engine: empty operator name")
	}
	if spec.Eval == nil {
		return fmt.Errorf("engine: operator %q has no evaluation", name)
	}
	if _, ok := r.ops[name]; ok {
		return fmt.Errorf("engine: operator %q already registered", name)
	}
	r.ops[name] = spec
	return nil
}

// RegisterConstant adds a constant generator. Redefining a name is an error.
func (r *Registry) RegisterConstant(name string, fn ConstantFunc) error {
	if name == "" {
		return fmt.Errorf("engine: empty constant name")
	}
	if fn == nil {
		return fmt.Errorf("engine: constant %q has no generator", name)
	}
	if _, ok := r.constants[name]; ok {
		return fmt.Errorf("engine: constant %q already registered", name)
	}
	r.constants[name] = fn
	return nil
}

// Apply evaluates a registered operator on the given arguments. It is the
// composition entry point for user-defined operators.
func (r *Registry) Apply(name string, args ...*Matrix) (*Matrix, error) {
	spec, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("engine: unknown operator %q", name)
	}
	if spec.Arity >= 0 && len(args) != spec.Arity {
		return nil, fmt.Errorf("engine: operator %q takes %d arguments, got %d", name, spec.Arity, len(args))
	}
	return spec.Eval(args)
}

func (r *Registry) op(name string) (OpSpec, bool) {
	s, ok := r.ops[name]
	return s, ok
}

func (r *Registry) constant(name string) (ConstantFunc, bool) {
	fn, ok := r.constants[name]
	return fn, ok
}

// DefaultRegistry returns a fresh registry with the built-in operators and
// constant generators.
func DefaultRegistry() *Registry {
	r := &Registry{
		ops:       make(map[string]OpSpec),
		constants: make(map[string]ConstantFunc),
	}

	binary := func(f func(a, b *Matrix) (*Matrix, error)) OpSpec {
		return OpSpec{Arity: 2, Eval: func(args []*Matrix) (*Matrix, error) { return f(args[0], args[1]) }}
	}
	unary := func(f func(a *Matrix) (*Matrix, error)) OpSpec {
		return OpSpec{Arity: 1, Eval: func(args []*Matrix) (*Matrix, error) { return f(args[0]) }}
	}

	r.ops["+"] = binary(add)
	r.ops["-"] = binary(sub)
	r.ops["neg"] = unary(func(a *Matrix) (*Matrix, error) { return scale(a, -1), nil })
	r.ops["*"] = binary(func(a, b *Matrix) (*Matrix, error) { return elemMul("*", a, b) })
	r.ops["mult"] = binary(func(a, b *Matrix) (*Matrix, error) { return elemMul("mult", a, b) })
	r.ops["/"] = binary(div)
	r.ops["@"] = binary(matMul)
	r.ops["tran"] = unary(func(a *Matrix) (*Matrix, error) { return tran(a), nil })
	r.ops["diag"] = unary(diagOp)
	r.ops["sum"] = unary(func(a *Matrix) (*Matrix, error) { return sumOp(a), nil })
	r.ops["pow"] = binary(powOp)
	r.ops["minv"] = unary(minvOp)
	r.ops["shift"] = binary(shiftOp)
	r.ops["weib"] = OpSpec{Arity: 4, Eval: func(args []*Matrix) (*Matrix, error) {
		return weibOp(args[0], args[1], args[2], args[3])
	}}
	r.ops["annuity"] = binary(annuityOp)

	r.constants["sum_vector"] = constOnes
	r.constants["identity"] = constIdentity
	r.constants["set_length"] = constSetLength
	r.constants["arange_0"] = constArange(0)
	r.constants["arange_1"] = constArange(1)
	r.constants["lower_triangular"] = constLowerTriangular
	return r
}

// shiftOp builds an n x n shift matrix: column j carries a single one at row
// j + s(j). Rows that fall outside leave the column empty. The first operand
// is the axis length, the second a scalar or per-column offset vector.
func shiftOp(length, shifts *Matrix) (*Matrix, error) {
	nv, err := scalarValue("shift", length)
	if err != nil {
		return nil, err
	}
	n := int(math.Round(nv))
	if n <= 0 {
		return nil, sets.NewDimensionMismatch("shift", "axis length must be positive, got %v", nv)
	}
	if !shifts.IsNumeric() {
		return nil, &NonlinearError{Op: "shift"}
	}

	offset := func(int) int { return int(math.Round(shifts.consts[0])) }
	switch {
	case shifts.rows == 1 && shifts.cols == 1:
	case shifts.rows == n && shifts.cols == 1, shifts.rows == 1 && shifts.cols == n:
		offset = func(j int) int { return int(math.Round(shifts.consts[j])) }
	default:
		return nil, sets.NewDimensionMismatch("shift", "offsets must be a scalar or a length-%d vector, got %dx%d", n, shifts.rows, shifts.cols)
	}

	out := zeros(n, n)
	for j := 0; j < n; j++ {
		if i := j + offset(j); i >= 0 && i < n {
			out.consts[out.at(i, j)] = 1
		}
	}
	return out, nil
}

// weibOp discretizes a Weibull distribution with the given scale and shape:
// the density sampled at 1..n and normalized to sum to one. dim 1 returns
// the column vector, dim 2 the lower-banded matrix M[i][j] = w[i-j].
func weibOp(sc, sh, rng, dim *Matrix) (*Matrix, error) {
	lambda, err := scalarValue("weib", sc)
	if err != nil {
		return nil, err
	}
	k, err := scalarValue("weib", sh)
	if err != nil {
		return nil, err
	}
	nv, err := scalarValue("weib", rng)
	if err != nil {
		return nil, err
	}
	dv, err := scalarValue("weib", dim)
	if err != nil {
		return nil, err
	}
	n := int(math.Round(nv))
	if n <= 0 {
		return nil, sets.NewDimensionMismatch("weib", "range must be positive, got %v", nv)
	}
	if lambda <= 0 || k <= 0 {
		return nil, fmt.Errorf("engine: weib scale and shape must be positive, got %v and %v", lambda, k)
	}

	w := make([]float64, n)
	var total float64
	for i := range w {
		x := float64(i + 1)
		w[i] = (k / lambda) * math.Pow(x/lambda, k-1) * math.Exp(-math.Pow(x/lambda, k))
		total += w[i]
	}
	if total == 0 {
		return nil, fmt.Errorf("engine: weib density vanished over range %d", n)
	}
	for i := range w {
		w[i] /= total
	}

	switch int(math.Round(dv)) {
	case 1:
		return NewNumeric(n, 1, w)
	case 2:
		out := zeros(n, n)
		for i := 0; i < n; i++ {
			for j := 0; j <= i; j++ {
				out.consts[out.at(i, j)] = w[i-j]
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("engine: weib dimension must be 1 or 2, got %v", dv)
	}
}

// annuityOp computes the capital recovery factor for an interest rate and a
// lifetime in periods: rate / (1 - (1+rate)^-n), or 1/n at rate zero.
func annuityOp(rate, lifetime *Matrix) (*Matrix, error) {
	r, err := scalarValue("annuity", rate)
	if err != nil {
		return nil, err
	}
	n, err := scalarValue("annuity", lifetime)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("engine: annuity lifetime must be positive, got %v", n)
	}
	if r < 0 {
		return nil, fmt.Errorf("engine: annuity rate must be nonnegative, got %v", r)
	}
	if r == 0 {
		return Scalar(1 / n), nil
	}
	return Scalar(r / (1 - math.Pow(1+r, -n))), nil
}

func constOnes(rows, cols int) (*Matrix, error) {
	out := zeros(rows, cols)
	for i := range out.consts {
		out.consts[i] = 1
	}
	return out, nil
}

func constIdentity(rows, cols int) (*Matrix, error) {
	out := zeros(rows, cols)
	for i := 0; i < rows && i < cols; i++ {
		out.consts[out.at(i, i)] = 1
	}
	return out, nil
}

func constSetLength(rows, cols int) (*Matrix, error) {
	n := rows
	if cols > n {
		n = cols
	}
	return Scalar(float64(n)), nil
}

// constArange fills column-major with start, start+1, ...
func constArange(start float64) ConstantFunc {
	return func(rows, cols int) (*Matrix, error) {
		out := zeros(rows, cols)
		v := start
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				out.consts[out.at(i, j)] = v
				v++
			}
		}
		return out, nil
	}
}

func constLowerTriangular(rows, cols int) (*Matrix, error) {
	out := zeros(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j <= i && j < cols; j++ {
			out.consts[out.at(i, j)] = 1
		}
	}
	return out, nil
}
