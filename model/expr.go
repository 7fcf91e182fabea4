package model

// Node is one node of a symbolic expression tree. Leaves are variable
// references and numeric literals; interior nodes are operator calls keyed by
// the operator registry names.
type Node interface {
	isNode()
}

// Ref references a model Variable by name.
type Ref struct {
	Name string
}

// Num is a numeric literal, a 1x1 matrix under expansion.
type Num struct {
	Value float64
}

// Call applies a registered operator to its arguments. Infix operators use
// their symbol as Op ("+", "-", "*", "/", "@", "==", "<=", ">=").
type Call struct {
	Op   string
	Args []Node
}

func (*Ref) isNode()  {}
func (*Num) isNode()  {}
func (*Call) isNode() {}

// Var builds a variable reference.
func Var(name string) *Ref { return &Ref{Name: name} }

// Lit builds a numeric literal.
func Lit(v float64) *Num { return &Num{Value: v} }

// Add builds a + b (element-wise with broadcasting).
func Add(a, b Node) *Call { return &Call{Op: "+", Args: []Node{a, b}} }

// Sub builds a - b.
func Sub(a, b Node) *Call { return &Call{Op: "-", Args: []Node{a, b}} }

// Neg builds -a.
func Neg(a Node) *Call { return &Call{Op: "neg", Args: []Node{a}} }

// Mul builds a * b, element-wise multiplication with broadcasting. At most
// one side may carry decision variables.
func Mul(a, b Node) *Call { return &Call{Op: "*", Args: []Node{a, b}} }

// Div builds a / b; the divisor must be numeric and non-zero.
func Div(a, b Node) *Call { return &Call{Op: "/", Args: []Node{a, b}} }

// MatMul builds the matrix product a @ b.
func MatMul(a, b Node) *Call { return &Call{Op: "@", Args: []Node{a, b}} }

// Tran builds the transpose of a.
func Tran(a Node) *Call { return &Call{Op: "tran", Args: []Node{a}} }

// Diag builds the diagonal matrix of a vector, or extracts the main diagonal
// of a square matrix as a column.
func Diag(a Node) *Call { return &Call{Op: "diag", Args: []Node{a}} }

// Sum builds the 1x1 sum of all entries of a.
func Sum(a Node) *Call { return &Call{Op: "sum", Args: []Node{a}} }

// Mult builds element-wise multiplication, the named form of Mul.
func Mult(a, b Node) *Call { return &Call{Op: "mult", Args: []Node{a, b}} }

// Shift builds the n x n shift matrix for a 1x1 set length and a 1x1 or 1xn
// numeric shift.
func Shift(length, shifts Node) *Call { return &Call{Op: "shift", Args: []Node{length, shifts}} }

// Pow builds the element-wise power of numeric operands.
func Pow(base, exponent Node) *Call { return &Call{Op: "pow", Args: []Node{base, exponent}} }

// MInv builds the inverse of a square non-singular numeric matrix.
func MInv(a Node) *Call { return &Call{Op: "minv", Args: []Node{a}} }

// Weib builds the discretized Weibull distribution over a range column.
func Weib(scale, shape, rng, dim Node) *Call {
	return &Call{Op: "weib", Args: []Node{scale, shape, rng, dim}}
}

// Annuity builds the 1x1 capital recovery factor for a rate and a lifetime.
func Annuity(rate, lifetime Node) *Call {
	return &Call{Op: "annuity", Args: []Node{rate, lifetime}}
}

// Eq builds the constraint a == b.
func Eq(a, b Node) *Call { return &Call{Op: "==", Args: []Node{a, b}} }

// Le builds the constraint a <= b.
func Le(a, b Node) *Call { return &Call{Op: "<=", Args: []Node{a, b}} }

// Ge builds the constraint a >= b.
func Ge(a, b Node) *Call { return &Call{Op: ">=", Args: []Node{a, b}} }

// Minimize marks a as the objective to minimize. a must expand to 1x1.
func Minimize(a Node) *Call { return &Call{Op: "Minimize", Args: []Node{a}} }

// Maximize marks a as the objective to maximize. a must expand to 1x1.
func Maximize(a Node) *Call { return &Call{Op: "Maximize", Args: []Node{a}} }

// Expression is one named tree belonging to a problem: a constraint (root
// "==", "<=" or ">=") or an objective (root "Minimize" or "Maximize").
type Expression struct {
	Label string
	Root  Node
}

// IsObjective reports whether the expression's root is an objective marker.
func (e Expression) IsObjective() bool {
	c, ok := e.Root.(*Call)
	return ok && (c.Op == "Minimize" || c.Op == "Maximize")
}

// IsConstraint reports whether the expression's root is a relation.
func (e Expression) IsConstraint() bool {
	c, ok := e.Root.(*Call)
	return ok && (c.Op == "==" || c.Op == "<=" || c.Op == ">=")
}

// Walk visits n and its children depth-first, left to right, stopping when fn
// returns false.
func Walk(n Node, fn func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	if c, ok := n.(*Call); ok {
		for _, a := range c.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	}
	return true
}

// Refs returns the distinct variable names referenced by n, in first-seen
// depth-first order.
func Refs(n Node) []string {
	var names []string
	seen := make(map[string]struct{})
	Walk(n, func(m Node) bool {
		if r, ok := m.(*Ref); ok {
			if _, dup := seen[r.Name]; !dup {
				seen[r.Name] = struct{}{}
				names = append(names, r.Name)
			}
		}
		return true
	})
	return names
}
