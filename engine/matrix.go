package engine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/couplex/couplex/sets"
)

// Term is one decision-column contribution to an affine cell.
type Term struct {
	Col  int
	Coef float64
}

// Matrix is a dense rows x cols grid of affine cells, each a constant plus
// linear terms over decision columns. Fully numeric matrices carry no term
// storage at all.
type Matrix struct {
	rows, cols int
	consts     []float64
	terms      [][]Term
}

// NewNumeric builds a numeric matrix from row-major data.
func NewNumeric(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("engine: negative dimension %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("engine: %d values for a %dx%d matrix", len(data), rows, cols)
	}
	return &Matrix{rows: rows, cols: cols, consts: data}, nil
}

// Scalar wraps v as a 1x1 numeric matrix.
func Scalar(v float64) *Matrix {
	return &Matrix{rows: 1, cols: 1, consts: []float64{v}}
}

func zeros(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, consts: make([]float64, rows*cols)}
}

func fromDense(d mat.Matrix) *Matrix {
	r, c := d.Dims()
	m := zeros(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.consts[i*c+j] = d.At(i, j)
		}
	}
	return m
}

// Rows returns the row count.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the column count.
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) at(i, j int) int { return i*m.cols + j }

// ConstAt returns the constant part of cell (i, j).
func (m *Matrix) ConstAt(i, j int) float64 { return m.consts[m.at(i, j)] }

// TermsAt returns the linear terms of cell (i, j). The slice is shared, not
// a copy.
func (m *Matrix) TermsAt(i, j int) []Term {
	if m.terms == nil {
		return nil
	}
	return m.terms[m.at(i, j)]
}

func (m *Matrix) termsAtIdx(k int) []Term {
	if m.terms == nil {
		return nil
	}
	return m.terms[k]
}

func (m *Matrix) ensureTerms() {
	if m.terms == nil {
		m.terms = make([][]Term, len(m.consts))
	}
}

// IsNumeric reports whether no cell carries decision terms.
func (m *Matrix) IsNumeric() bool {
	if m.terms == nil {
		return true
	}
	for _, t := range m.terms {
		if len(t) > 0 {
			return false
		}
	}
	return true
}

// Dense converts a numeric matrix with positive dimensions to gonum form.
func (m *Matrix) Dense() (*mat.Dense, bool) {
	if !m.IsNumeric() || m.rows == 0 || m.cols == 0 {
		return nil, false
	}
	return mat.NewDense(m.rows, m.cols, append([]float64(nil), m.consts...)), true
}

// scalarValue extracts the value of a 1x1 numeric matrix.
func scalarValue(op string, m *Matrix) (float64, error) {
	if !m.IsNumeric() {
		return 0, &NonlinearError{Op: op}
	}
	if m.rows != 1 || m.cols != 1 {
		return 0, sets.NewDimensionMismatch(op, "want a scalar, got %dx%d", m.rows, m.cols)
	}
	return m.consts[0], nil
}

func bcDim(a, b int) (int, bool) {
	switch {
	case a == b:
		return a, true
	case a == 1:
		return b, true
	case b == 1:
		return a, true
	default:
		return 0, false
	}
}

// broadcastShape resolves the elementwise result shape of two operands.
func broadcastShape(op string, a, b *Matrix) (int, int, error) {
	r, okr := bcDim(a.rows, b.rows)
	c, okc := bcDim(a.cols, b.cols)
	if !okr || !okc {
		return 0, 0, sets.NewDimensionMismatch(op, "cannot broadcast %dx%d with %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	return r, c, nil
}

// bcIdx maps a result position to an operand cell under broadcasting.
func (m *Matrix) bcIdx(i, j int) int {
	if m.rows == 1 {
		i = 0
	}
	if m.cols == 1 {
		j = 0
	}
	return m.at(i, j)
}

func concatTerms(a, b []Term) []Term {
	out := make([]Term, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func scaleTerms(ts []Term, k float64) []Term {
	if k == 0 || len(ts) == 0 {
		return nil
	}
	out := make([]Term, len(ts))
	for i, t := range ts {
		out[i] = Term{Col: t.Col, Coef: t.Coef * k}
	}
	return out
}

// add computes a + b with numpy-style broadcasting.
func add(a, b *Matrix) (*Matrix, error) {
	rows, cols, err := broadcastShape("+", a, b)
	if err != nil {
		return nil, err
	}
	out := zeros(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			ka, kb := a.bcIdx(i, j), b.bcIdx(i, j)
			k := out.at(i, j)
			out.consts[k] = a.consts[ka] + b.consts[kb]
			ta, tb := a.termsAtIdx(ka), b.termsAtIdx(kb)
			if len(ta)+len(tb) > 0 {
				out.ensureTerms()
				out.terms[k] = concatTerms(ta, tb)
			}
		}
	}
	return out, nil
}

// scale computes k * a.
func scale(a *Matrix, k float64) *Matrix {
	out := zeros(a.rows, a.cols)
	for i, c := range a.consts {
		out.consts[i] = c * k
		if ts := scaleTerms(a.termsAtIdx(i), k); len(ts) > 0 {
			out.ensureTerms()
			out.terms[i] = ts
		}
	}
	return out
}

// sub computes a - b with broadcasting.
func sub(a, b *Matrix) (*Matrix, error) {
	return add(a, scale(b, -1))
}

// elemMul computes the elementwise product. At most one operand may carry
// decision terms.
func elemMul(op string, a, b *Matrix) (*Matrix, error) {
	an, bn := a.IsNumeric(), b.IsNumeric()
	if !an && !bn {
		return nil, &NonlinearError{Op: op}
	}
	if !an {
		// keep the symbolic operand on the left
		a, b = b, a
	}
	rows, cols, err := broadcastShape(op, a, b)
	if err != nil {
		return nil, err
	}
	out := zeros(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			ka, kb := a.bcIdx(i, j), b.bcIdx(i, j)
			k := out.at(i, j)
			av := a.consts[ka]
			out.consts[k] = av * b.consts[kb]
			if ts := scaleTerms(b.termsAtIdx(kb), av); len(ts) > 0 {
				out.ensureTerms()
				out.terms[k] = ts
			}
		}
	}
	return out, nil
}

// div computes a / b elementwise. The divisor must be numeric and nonzero.
func div(a, b *Matrix) (*Matrix, error) {
	if !b.IsNumeric() {
		return nil, &NonlinearError{Op: "/"}
	}
	rows, cols, err := broadcastShape("/", a, b)
	if err != nil {
		return nil, err
	}
	out := zeros(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			ka, kb := a.bcIdx(i, j), b.bcIdx(i, j)
			bv := b.consts[kb]
			if bv == 0 {
				return nil, fmt.Errorf("engine: division by zero at (%d, %d)", i, j)
			}
			k := out.at(i, j)
			out.consts[k] = a.consts[ka] / bv
			if ts := scaleTerms(a.termsAtIdx(ka), 1/bv); len(ts) > 0 {
				out.ensureTerms()
				out.terms[k] = ts
			}
		}
	}
	return out, nil
}

// matMul computes the matrix product. At most one operand may carry decision
// terms; no broadcasting.
func matMul(a, b *Matrix) (*Matrix, error) {
	if a.cols != b.rows {
		return nil, sets.NewDimensionMismatch("@", "inner dimensions %dx%d @ %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	an, bn := a.IsNumeric(), b.IsNumeric()
	switch {
	case an && bn:
		ad, aok := a.Dense()
		bd, bok := b.Dense()
		if !aok || !bok {
			return zeros(a.rows, b.cols), nil
		}
		var prod mat.Dense
		prod.Mul(ad, bd)
		return fromDense(&prod), nil
	case !an && !bn:
		return nil, &NonlinearError{Op: "@"}
	}

	out := zeros(a.rows, b.cols)
	out.ensureTerms()
	for i := 0; i < a.rows; i++ {
		for k := 0; k < b.cols; k++ {
			idx := out.at(i, k)
			var c float64
			var ts []Term
			for j := 0; j < a.cols; j++ {
				ka, kb := a.at(i, j), b.at(j, k)
				c += a.consts[ka] * b.consts[kb]
				if !an {
					ts = append(ts, scaleTerms(a.termsAtIdx(ka), b.consts[kb])...)
				} else {
					ts = append(ts, scaleTerms(b.termsAtIdx(kb), a.consts[ka])...)
				}
			}
			out.consts[idx] = c
			out.terms[idx] = ts
		}
	}
	return out, nil
}

// tran transposes an affine matrix.
func tran(a *Matrix) *Matrix {
	out := zeros(a.cols, a.rows)
	if a.terms != nil {
		out.ensureTerms()
	}
	for i := 0; i < a.rows; i++ {
		for j := 0; j < a.cols; j++ {
			k := out.at(j, i)
			out.consts[k] = a.consts[a.at(i, j)]
			if a.terms != nil {
				out.terms[k] = a.terms[a.at(i, j)]
			}
		}
	}
	return out
}

// diagOp places a vector on the main diagonal of a square matrix.
func diagOp(a *Matrix) (*Matrix, error) {
	var n int
	switch {
	case a.cols == 1:
		n = a.rows
	case a.rows == 1:
		n = a.cols
	default:
		return nil, sets.NewDimensionMismatch("diag", "want a vector, got %dx%d", a.rows, a.cols)
	}
	out := zeros(n, n)
	if a.terms != nil {
		out.ensureTerms()
	}
	for i := 0; i < n; i++ {
		k := out.at(i, i)
		out.consts[k] = a.consts[i]
		if a.terms != nil {
			out.terms[k] = a.terms[i]
		}
	}
	return out, nil
}

// sumOp reduces all cells to a 1x1 affine scalar.
func sumOp(a *Matrix) *Matrix {
	out := zeros(1, 1)
	var ts []Term
	for i, c := range a.consts {
		out.consts[0] += c
		ts = append(ts, a.termsAtIdx(i)...)
	}
	if len(ts) > 0 {
		out.ensureTerms()
		out.terms[0] = ts
	}
	return out
}

// powOp computes the elementwise power with broadcasting. Numeric only.
func powOp(a, b *Matrix) (*Matrix, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return nil, &NonlinearError{Op: "pow"}
	}
	rows, cols, err := broadcastShape("pow", a, b)
	if err != nil {
		return nil, err
	}
	out := zeros(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.consts[out.at(i, j)] = math.Pow(a.consts[a.bcIdx(i, j)], b.consts[b.bcIdx(i, j)])
		}
	}
	return out, nil
}

// minvOp inverts a square numeric matrix.
func minvOp(a *Matrix) (*Matrix, error) {
	if !a.IsNumeric() {
		return nil, &NonlinearError{Op: "minv"}
	}
	if a.rows != a.cols || a.rows == 0 {
		return nil, sets.NewDimensionMismatch("minv", "want a square matrix, got %dx%d", a.rows, a.cols)
	}
	d, _ := a.Dense()
	var inv mat.Dense
	if err := inv.Inverse(d); err != nil {
		return nil, fmt.Errorf("engine: matrix inverse: %w", err)
	}
	return fromDense(&inv), nil
}
