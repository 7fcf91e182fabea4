package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryOps(t *testing.T) {
	assert := require.New(t)

	r := DefaultRegistry()
	for _, name := range []string{
		"+", "-", "neg", "*", "mult", "/", "@",
		"tran", "diag", "sum", "pow", "minv", "shift", "weib", "annuity",
	} {
		_, ok := r.op(name)
		assert.True(ok, "operator %q missing", name)
	}
	for _, name := range []string{
		"sum_vector", "identity", "set_length", "arange_0", "arange_1", "lower_triangular",
	} {
		_, ok := r.constant(name)
		assert.True(ok, "constant %q missing", name)
	}

	// registries are independent clones
	r2 := DefaultRegistry()
	assert.NoError(r.RegisterOperator("double", OpSpec{Arity: 1, Eval: func(args []*Matrix) (*Matrix, error) {
		return scale(args[0], 2), nil
	}}))
	_, ok := r2.op("double")
	assert.False(ok)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	assert := require.New(t)

	r := DefaultRegistry()
	err := r.RegisterOperator("sum", OpSpec{Arity: 1, Eval: func(args []*Matrix) (*Matrix, error) {
		return args[0], nil
	}})
	assert.Error(err)

	assert.Error(r.RegisterConstant("identity", constOnes))
	assert.Error(r.RegisterOperator("", OpSpec{Arity: 0, Eval: func([]*Matrix) (*Matrix, error) { return nil, nil }}))
	assert.Error(r.RegisterOperator("noop", OpSpec{Arity: 0}))
}

func TestUserDefinedOperator(t *testing.T) {
	assert := require.New(t)

	r := DefaultRegistry()
	assert.NoError(r.RegisterOperator("double", OpSpec{Arity: 1, Eval: func(args []*Matrix) (*Matrix, error) {
		return scale(args[0], 2), nil
	}}))

	spec, ok := r.op("double")
	assert.True(ok)
	out, err := spec.Eval([]*Matrix{Scalar(21)})
	assert.NoError(err)
	assert.Equal(42.0, out.ConstAt(0, 0))
}

func TestConstantGenerators(t *testing.T) {
	assert := require.New(t)
	r := DefaultRegistry()

	gen := func(name string, rows, cols int) *Matrix {
		fn, ok := r.constant(name)
		assert.True(ok)
		m, err := fn(rows, cols)
		assert.NoError(err)
		return m
	}

	assert.Equal([]float64{1, 1, 1, 1}, gen("sum_vector", 2, 2).consts)

	id := gen("identity", 2, 3)
	assert.Equal([]float64{1, 0, 0, 0, 1, 0}, id.consts)

	n := gen("set_length", 3, 5)
	assert.Equal(5.0, n.ConstAt(0, 0))

	// column-major numbering
	ar := gen("arange_0", 2, 2)
	assert.Equal([]float64{0, 2, 1, 3}, ar.consts)
	assert.Equal([]float64{1, 2, 3}, gen("arange_1", 3, 1).consts)

	lt := gen("lower_triangular", 3, 3)
	assert.Equal([]float64{1, 0, 0, 1, 1, 0, 1, 1, 1}, lt.consts)
}
