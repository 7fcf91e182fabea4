package engine

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex/sets"
)

func numeric(t *testing.T, rows, cols int, data ...float64) *Matrix {
	t.Helper()
	m, err := NewNumeric(rows, cols, data)
	require.NoError(t, err)
	return m
}

// decisionVec builds an n x 1 symbolic vector over columns start..start+n-1.
func decisionVec(n, start int) *Matrix {
	m := zeros(n, 1)
	m.ensureTerms()
	for i := 0; i < n; i++ {
		m.terms[i] = []Term{{Col: start + i, Coef: 1}}
	}
	return m
}

func TestAddBroadcast(t *testing.T) {
	assert := require.New(t)

	a := numeric(t, 2, 2, 1, 2, 3, 4)
	b := numeric(t, 2, 1, 10, 20)

	c, err := add(a, b)
	assert.NoError(err)
	assert.Equal(2, c.Rows())
	assert.Equal(2, c.Cols())
	assert.Equal([]float64{11, 12, 23, 24}, c.consts)

	s, err := add(a, Scalar(100))
	assert.NoError(err)
	assert.Equal([]float64{101, 102, 103, 104}, s.consts)

	_, err = add(a, numeric(t, 3, 1, 1, 2, 3))
	var dim *sets.DimensionMismatchError
	assert.True(errors.As(err, &dim))
}

func TestSubKeepsTerms(t *testing.T) {
	assert := require.New(t)

	x := decisionVec(2, 0)
	c := numeric(t, 2, 1, 5, 7)

	d, err := sub(x, c)
	assert.NoError(err)
	assert.Equal(-5.0, d.ConstAt(0, 0))
	assert.Equal(-7.0, d.ConstAt(1, 0))
	assert.Equal([]Term{{Col: 0, Coef: 1}}, d.TermsAt(0, 0))
	assert.Equal([]Term{{Col: 1, Coef: 1}}, d.TermsAt(1, 0))
}

func TestElemMul(t *testing.T) {
	assert := require.New(t)

	a := numeric(t, 2, 2, 1, 2, 3, 4)
	b := numeric(t, 2, 2, 5, 6, 7, 8)
	c, err := elemMul("*", a, b)
	assert.NoError(err)
	assert.Equal([]float64{5, 12, 21, 32}, c.consts)

	// scalar and column broadcasting
	c, err = elemMul("*", a, Scalar(2))
	assert.NoError(err)
	assert.Equal([]float64{2, 4, 6, 8}, c.consts)

	x := decisionVec(2, 0)
	w := numeric(t, 2, 1, 3, -4)
	c, err = elemMul("*", w, x)
	assert.NoError(err)
	assert.Equal([]Term{{Col: 0, Coef: 3}}, c.TermsAt(0, 0))
	assert.Equal([]Term{{Col: 1, Coef: -4}}, c.TermsAt(1, 0))

	_, err = elemMul("*", x, x)
	var nl *NonlinearError
	assert.True(errors.As(err, &nl))
}

func TestDiv(t *testing.T) {
	assert := require.New(t)

	a := numeric(t, 1, 2, 6, 9)
	c, err := div(a, Scalar(3))
	assert.NoError(err)
	assert.Equal([]float64{2, 3}, c.consts)

	x := decisionVec(2, 0)
	c, err = div(x, numeric(t, 2, 1, 2, 4))
	assert.NoError(err)
	assert.Equal([]Term{{Col: 0, Coef: 0.5}}, c.TermsAt(0, 0))
	assert.Equal([]Term{{Col: 1, Coef: 0.25}}, c.TermsAt(1, 0))

	_, err = div(a, Scalar(0))
	assert.Error(err)

	_, err = div(a, tran(decisionVec(2, 0)))
	var nl *NonlinearError
	assert.True(errors.As(err, &nl))
}

func TestDense(t *testing.T) {
	assert := require.New(t)

	d, ok := numeric(t, 2, 2, 1, 2, 3, 4).Dense()
	assert.True(ok)
	r, c := d.Dims()
	assert.Equal(2, r)
	assert.Equal(2, c)
	assert.Equal(4.0, d.At(1, 1))

	// symbolic and degenerate matrices do not convert
	_, ok = decisionVec(2, 0).Dense()
	assert.False(ok)
	_, ok = zeros(0, 3).Dense()
	assert.False(ok)
}

func TestMatMul(t *testing.T) {
	assert := require.New(t)

	a := numeric(t, 2, 2, 1, 2, 3, 4)
	b := numeric(t, 2, 1, 5, 6)
	c, err := matMul(a, b)
	assert.NoError(err)
	assert.Equal(2, c.Rows())
	assert.Equal(1, c.Cols())
	assert.Equal([]float64{17, 39}, c.consts)

	// numeric @ symbolic: rows of a weight the decision terms
	x := decisionVec(2, 0)
	c, err = matMul(a, x)
	assert.NoError(err)
	assert.ElementsMatch([]Term{{Col: 0, Coef: 1}, {Col: 1, Coef: 2}}, c.TermsAt(0, 0))
	assert.ElementsMatch([]Term{{Col: 0, Coef: 3}, {Col: 1, Coef: 4}}, c.TermsAt(1, 0))

	// symbolic @ numeric
	c, err = matMul(tran(x), b)
	assert.NoError(err)
	assert.ElementsMatch([]Term{{Col: 0, Coef: 5}, {Col: 1, Coef: 6}}, c.TermsAt(0, 0))

	_, err = matMul(b, a)
	var dim *sets.DimensionMismatchError
	assert.True(errors.As(err, &dim))

	_, err = matMul(tran(x), x)
	var nl *NonlinearError
	assert.True(errors.As(err, &nl))
}

func TestTranDiagSum(t *testing.T) {
	assert := require.New(t)

	a := numeric(t, 2, 3, 1, 2, 3, 4, 5, 6)
	at := tran(a)
	assert.Equal(3, at.Rows())
	assert.Equal(2, at.Cols())
	assert.Equal([]float64{1, 4, 2, 5, 3, 6}, at.consts)

	d, err := diagOp(numeric(t, 3, 1, 7, 8, 9))
	assert.NoError(err)
	assert.Equal([]float64{7, 0, 0, 0, 8, 0, 0, 0, 9}, d.consts)

	// diag also carries decision terms
	dx, err := diagOp(decisionVec(2, 3))
	assert.NoError(err)
	assert.Equal([]Term{{Col: 3, Coef: 1}}, dx.TermsAt(0, 0))
	assert.Empty(dx.TermsAt(0, 1))

	_, err = diagOp(a)
	var dim *sets.DimensionMismatchError
	assert.True(errors.As(err, &dim))

	s := sumOp(a)
	assert.Equal(1, s.Rows())
	assert.Equal(1, s.Cols())
	assert.Equal(21.0, s.ConstAt(0, 0))

	sx := sumOp(decisionVec(3, 0))
	assert.Len(sx.TermsAt(0, 0), 3)
}

func TestPow(t *testing.T) {
	assert := require.New(t)

	c, err := powOp(numeric(t, 2, 2, 1, 2, 3, 4), Scalar(2))
	assert.NoError(err)
	assert.Equal([]float64{1, 4, 9, 16}, c.consts)

	c, err = powOp(Scalar(2), numeric(t, 1, 3, 0, 1, 2))
	assert.NoError(err)
	assert.Equal([]float64{1, 2, 4}, c.consts)

	_, err = powOp(decisionVec(2, 0), Scalar(2))
	var nl *NonlinearError
	assert.True(errors.As(err, &nl))
}

func TestMInv(t *testing.T) {
	assert := require.New(t)

	inv, err := minvOp(numeric(t, 2, 2, 4, 7, 2, 6))
	assert.NoError(err)
	want := []float64{0.6, -0.7, -0.2, 0.4}
	for i := range want {
		assert.InDelta(want[i], inv.consts[i], 1e-12)
	}

	_, err = minvOp(numeric(t, 2, 2, 1, 2, 2, 4))
	assert.Error(err, "singular")

	_, err = minvOp(numeric(t, 2, 3, 1, 2, 3, 4, 5, 6))
	var dim *sets.DimensionMismatchError
	assert.True(errors.As(err, &dim))
}

func TestShiftScalar(t *testing.T) {
	assert := require.New(t)

	m, err := shiftOp(Scalar(4), Scalar(1))
	assert.NoError(err)
	// column j carries a one at row j+1
	want := []float64{
		0, 0, 0, 0,
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
	assert.Equal(want, m.consts)
}

func TestShiftVector(t *testing.T) {
	assert := require.New(t)

	m, err := shiftOp(Scalar(4), numeric(t, 4, 1, 1, 2, -1, 5))
	assert.NoError(err)
	want := []float64{
		0, 0, 0, 0,
		1, 0, 1, 0,
		0, 0, 0, 0,
		0, 1, 0, 0,
	}
	assert.Equal(want, m.consts)

	_, err = shiftOp(Scalar(4), numeric(t, 3, 1, 1, 2, 3))
	var dim *sets.DimensionMismatchError
	assert.True(errors.As(err, &dim))
}

func TestWeib(t *testing.T) {
	assert := require.New(t)

	v, err := weibOp(Scalar(1.5), Scalar(2), Scalar(6), Scalar(1))
	assert.NoError(err)
	assert.Equal(6, v.Rows())
	assert.Equal(1, v.Cols())
	want := []float64{0.62, 0.33, 0.05, 0, 0, 0}
	var total float64
	for i := range want {
		assert.InDelta(want[i], v.consts[i], 0.01)
		total += v.consts[i]
	}
	assert.InDelta(1.0, total, 1e-12)

	m, err := weibOp(Scalar(1.5), Scalar(2), Scalar(3), Scalar(2))
	assert.NoError(err)
	assert.Equal(3, m.Rows())
	assert.Equal(3, m.Cols())
	assert.Equal(m.ConstAt(0, 0), m.ConstAt(1, 1))
	assert.Equal(m.ConstAt(1, 0), m.ConstAt(2, 1))
	assert.Equal(0.0, m.ConstAt(0, 2))

	_, err = weibOp(Scalar(1.5), Scalar(2), Scalar(6), Scalar(3))
	assert.Error(err)
}

func TestAnnuity(t *testing.T) {
	assert := require.New(t)

	a, err := annuityOp(Scalar(0.05), Scalar(10))
	assert.NoError(err)
	assert.InDelta(0.1295045750, a.ConstAt(0, 0), 1e-9)

	a, err = annuityOp(Scalar(0), Scalar(10))
	assert.NoError(err)
	assert.InDelta(0.1, a.ConstAt(0, 0), 1e-12)

	_, err = annuityOp(Scalar(0.05), Scalar(0))
	assert.Error(err)
}

func TestBroadcastProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	genDim := gen.IntRange(1, 4)
	properties.Property("a+b == b+a over broadcastable shapes", prop.ForAll(
		func(r1, c1, pickR, pickC int) bool {
			// derive a second shape that is always broadcastable
			r2, c2 := r1, c1
			if pickR%2 == 0 {
				r2 = 1
			}
			if pickC%2 == 0 {
				c2 = 1
			}
			a := zeros(r1, c1)
			for i := range a.consts {
				a.consts[i] = float64(i + 1)
			}
			b := zeros(r2, c2)
			for i := range b.consts {
				b.consts[i] = float64(10 * (i + 1))
			}
			ab, err1 := add(a, b)
			ba, err2 := add(b, a)
			if err1 != nil || err2 != nil {
				return false
			}
			for i := range ab.consts {
				if ab.consts[i] != ba.consts[i] {
					return false
				}
			}
			return true
		},
		genDim, genDim, gen.IntRange(0, 3), gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
