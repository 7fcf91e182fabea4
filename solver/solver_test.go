package solver

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleModel() *Model {
	// minimize 2x + 3y subject to x + y >= 4, x - y == 1, 0 <= x,y <= 10.
	return &Model{
		Cols:   2,
		Sense:  Minimize,
		Obj:    []float64{2, 3},
		RowPtr: []int{0, 2, 4},
		ColIdx: []int{0, 1, 0, 1},
		Coef:   []float64{1, 1, 1, -1},
		Rel:    []Rel{RelGe, RelEq},
		RHS:    []float64{4, 1},
		Lower:  []float64{0, 0},
		Upper:  []float64{10, 10},
	}
}

func TestModelValidate(t *testing.T) {
	assert := require.New(t)

	assert.NoError(sampleModel().Validate())

	m := sampleModel()
	m.Obj = m.Obj[:1]
	assert.Error(m.Validate())

	m = sampleModel()
	m.ColIdx[0] = 5
	assert.Error(m.Validate())

	m = sampleModel()
	m.RowPtr = []int{0, 3, 2}
	assert.Error(m.Validate())

	m = sampleModel()
	m.RowPtr[len(m.RowPtr)-1] = 3
	assert.Error(m.Validate())
}

func TestModelBound(t *testing.T) {
	assert := require.New(t)

	m := sampleModel()
	lo, hi := m.Bound(1)
	assert.Equal(0.0, lo)
	assert.Equal(10.0, hi)

	m.Lower, m.Upper = nil, nil
	lo, hi = m.Bound(1)
	assert.True(math.IsInf(lo, -1))
	assert.True(math.IsInf(hi, 1))
}

func TestModelSerialization(t *testing.T) {
	assert := require.New(t)

	written := sampleModel()
	written.ObjConst = -7.5
	written.Upper = []float64{10, math.Inf(1)}

	var buf bytes.Buffer
	n, err := written.WriteTo(&buf)
	assert.NoError(err)
	assert.Equal(int64(buf.Len()), n)

	var read Model
	rn, err := read.ReadFrom(&buf)
	assert.NoError(err)
	assert.Equal(n, rn)

	if diff := cmp.Diff(written, &read); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestModelSerializationNoBounds(t *testing.T) {
	assert := require.New(t)

	written := sampleModel()
	written.Lower, written.Upper = nil, nil

	var buf bytes.Buffer
	_, err := written.WriteTo(&buf)
	assert.NoError(err)

	var read Model
	_, err = read.ReadFrom(&buf)
	assert.NoError(err)
	assert.Nil(read.Lower)
	assert.Nil(read.Upper)

	if diff := cmp.Diff(written, &read); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestModelSerializationBadMagic(t *testing.T) {
	assert := require.New(t)

	var buf bytes.Buffer
	_, err := sampleModel().WriteTo(&buf)
	assert.NoError(err)

	raw := buf.Bytes()
	raw[0] = 'X'

	var read Model
	_, err = read.ReadFrom(bytes.NewReader(raw))
	assert.ErrorIs(err, errInvalidFormat)
}

func TestOptions(t *testing.T) {
	assert := require.New(t)

	cfg, err := NewConfig(WithTolerance(1e-6), WithTimeout(2*time.Second))
	assert.NoError(err)
	assert.Equal(1e-6, cfg.Tolerance)
	assert.Equal(2*time.Second, cfg.Timeout)

	_, err = NewConfig(WithTolerance(0))
	assert.Error(err)

	_, err = NewConfig(WithTimeout(-time.Second))
	assert.Error(err)
}

func TestStatusString(t *testing.T) {
	assert := require.New(t)
	assert.Equal("optimal", StatusOptimal.String())
	assert.Equal("infeasible", StatusInfeasible.String())
	assert.Equal("unbounded", StatusUnbounded.String())

	e := &Error{Status: StatusInfeasible, Detail: "no feasible point"}
	assert.Contains(e.Error(), "infeasible")
	assert.Contains(e.Error(), "no feasible point")
}
