package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/couplex/couplex/internal/utils"
	"github.com/couplex/couplex/logger"
	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/profile"
	"github.com/couplex/couplex/solver"
	"github.com/couplex/couplex/store"
)

// Builder assembles numeric problems from a validated model. It owns an
// operator registry, so user-defined operators and constants registered on
// it stay local to the builder.
type Builder struct {
	model *model.Model
	reg   *Registry
	log   zerolog.Logger
	fill  *float64
}

// Option configures a Builder.
type Option func(*Builder) error

// WithRegistry replaces the default operator registry.
func WithRegistry(r *Registry) Option {
	return func(b *Builder) error {
		if r == nil {
			return fmt.Errorf("engine: nil registry")
		}
		b.reg = r
		return nil
	}
}

// WithLogger routes build logging.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) error {
		b.log = l
		return nil
	}
}

// WithMissingFill substitutes v for exogenous entries that were never
// loaded. Without it a missing entry fails the build with a
// store.MissingDataError.
func WithMissingFill(v float64) Option {
	return func(b *Builder) error {
		b.fill = &v
		return nil
	}
}

// NewBuilder validates the model and checks every expression against the
// registry: unknown operators, wrong arities, misplaced relations, shape
// mismatches and unknown constant generators are reported here, not at
// build time.
func NewBuilder(m *model.Model, opts ...Option) (*Builder, error) {
	b := &Builder{
		model: m,
		reg:   DefaultRegistry(),
		log:   logger.Logger(),
	}
	for _, o := range opts {
		if err := o(b); err != nil {
			return nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := b.checkExpressions(); err != nil {
		return nil, err
	}
	if err := b.checkShapes(); err != nil {
		return nil, err
	}
	if err := b.checkConstants(); err != nil {
		return nil, err
	}
	return b, nil
}

// Registry exposes the builder's registry for extension before building.
func (b *Builder) Registry() *Registry { return b.reg }

func isRelationOp(op string) bool {
	return op == "==" || op == "<=" || op == ">="
}

func isObjectiveOp(op string) bool {
	return op == "Minimize" || op == "Maximize"
}

func (b *Builder) checkExpressions() error {
	for _, p := range b.model.Problems() {
		for _, expr := range p.Expressions() {
			root := expr.Root.(*model.Call)
			for _, arg := range root.Args {
				if err := b.checkNode(arg); err != nil {
					return fmt.Errorf("problem %q, expression %q: %w", p.Name(), expr.Label, err)
				}
			}
		}
	}
	return nil
}

func (b *Builder) checkNode(n model.Node) error {
	var fail error
	model.Walk(n, func(node model.Node) bool {
		call, isCall := node.(*model.Call)
		if !isCall {
			return true
		}
		if isRelationOp(call.Op) || isObjectiveOp(call.Op) {
			fail = fmt.Errorf("engine: %q only allowed at the expression root", call.Op)
			return false
		}
		spec, known := b.reg.op(call.Op)
		if !known {
			fail = fmt.Errorf("engine: unknown operator %q", call.Op)
			return false
		}
		if spec.Arity >= 0 && len(call.Args) != spec.Arity {
			fail = fmt.Errorf("engine: operator %q takes %d arguments, got %d", call.Op, spec.Arity, len(call.Args))
			return false
		}
		return true
	})
	return fail
}

func (b *Builder) checkConstants() error {
	for _, t := range b.model.Tables() {
		if t.Role().Kind() != model.RoleConstant {
			continue
		}
		if _, ok := b.reg.constant(t.Role().Generator()); !ok {
			return fmt.Errorf("engine: table %q uses unknown constant generator %q", t.Name(), t.Role().Generator())
		}
	}
	return nil
}

// Built is one numeric problem ready to solve, plus the mapping needed to
// write the solution back to the store.
type Built struct {
	Problem  string
	Scenario model.Scenario
	Model    *solver.Model
	Blocks   []Block
	Stats    Stats
}

// Stats summarizes a build.
type Stats struct {
	Rows      int
	Cols      int
	NNZ       int
	Instances int
}

var negInf, posInf = math.Inf(-1), math.Inf(1)

// lpBuilder accumulates CSR rows, merging duplicate columns per row.
type lpBuilder struct {
	rowptr []int
	colidx []int
	coef   []float64
	rel    []solver.Rel
	rhs    []float64
}

func newLPBuilder() *lpBuilder {
	return &lpBuilder{rowptr: []int{0}}
}

func (lb *lpBuilder) addRow(ts []Term, rel solver.Rel, rhs float64) {
	acc := make(map[int]float64, len(ts))
	for _, t := range ts {
		acc[t.Col] += t.Coef
	}
	for _, col := range utils.SortedKeys(acc) {
		if c := acc[col]; c != 0 {
			lb.colidx = append(lb.colidx, col)
			lb.coef = append(lb.coef, c)
		}
	}
	lb.rowptr = append(lb.rowptr, len(lb.colidx))
	lb.rel = append(lb.rel, rel)
	lb.rhs = append(lb.rhs, rhs)
}

func relOf(op string) solver.Rel {
	switch op {
	case "<=":
		return solver.RelLe
	case ">=":
		return solver.RelGe
	default:
		return solver.RelEq
	}
}

// Build assembles the numeric problem for one (problem, scenario) pair,
// reading exogenous data from src. Shape errors, nonlinear uses and missing
// data all surface here, before any solver runs.
func (b *Builder) Build(p *model.Problem, sc model.Scenario, src store.Reader) (*Built, error) {
	acc := newAccessor(b, p, sc, src)
	lb := newLPBuilder()

	objTerms := make(map[int]float64)
	objConst := 0.0
	sense := solver.Minimize
	haveObj := false
	instances := 0

	for _, expr := range p.Expressions() {
		root := expr.Root.(*model.Call)
		vars, err := b.exprVariables(expr)
		if err != nil {
			return nil, err
		}
		exp := newExpansion(vars)
		count := 0

		err = exp.each(func(pi map[string]string) error {
			count++
			if isObjectiveOp(root.Op) {
				m, err := acc.eval(root.Args[0], pi)
				if err != nil {
					return err
				}
				if m.Rows() != 1 || m.Cols() != 1 {
					return fmt.Errorf("engine: objective must be scalar, got %dx%d", m.Rows(), m.Cols())
				}
				objConst += m.consts[0]
				for _, t := range m.termsAtIdx(0) {
					objTerms[t.Col] += t.Coef
				}
				if root.Op == "Maximize" {
					sense = solver.Maximize
				}
				haveObj = true
				return nil
			}

			l, err := acc.eval(root.Args[0], pi)
			if err != nil {
				return err
			}
			r, err := acc.eval(root.Args[1], pi)
			if err != nil {
				return err
			}
			diff, err := sub(l, r)
			if err != nil {
				return err
			}
			rel := relOf(root.Op)
			for i := 0; i < diff.Rows(); i++ {
				for j := 0; j < diff.Cols(); j++ {
					k := diff.at(i, j)
					lb.addRow(diff.termsAtIdx(k), rel, -diff.consts[k])
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("problem %q, expression %q: %w", p.Name(), expr.Label, err)
		}
		instances += count
		profile.RecordExpansion(p.Name(), expr.Label, count)
	}

	if !haveObj && !p.Feasibility() {
		return nil, &model.MissingObjectiveError{Problem: p.Name()}
	}

	sm := &solver.Model{
		Cols:     acc.nextCol,
		Sense:    sense,
		Obj:      make([]float64, acc.nextCol),
		ObjConst: objConst,
		RowPtr:   lb.rowptr,
		ColIdx:   lb.colidx,
		Coef:     lb.coef,
		Rel:      lb.rel,
		RHS:      lb.rhs,
	}
	for col, c := range objTerms {
		sm.Obj[col] = c
	}
	b.applyBounds(sm, acc)

	built := &Built{
		Problem:  p.Name(),
		Scenario: sc,
		Model:    sm,
		Blocks:   acc.blockList(),
		Stats: Stats{
			Rows:      sm.Rows(),
			Cols:      sm.Cols,
			NNZ:       sm.NNZ(),
			Instances: instances,
		},
	}
	b.log.Debug().
		Str("problem", p.Name()).
		Str("scenario", sc.Key()).
		Int("rows", built.Stats.Rows).
		Int("cols", built.Stats.Cols).
		Int("nnz", built.Stats.NNZ).
		Msg("problem built")
	return built, nil
}

// applyBounds pins binary decision columns to [0, 1]. Real and integer
// columns stay free; integrality is relaxed at the solver layer.
func (b *Builder) applyBounds(sm *solver.Model, acc *accessor) {
	hasBinary := false
	for _, name := range acc.order {
		if acc.blocks[name].table.Kind() == model.Binary {
			hasBinary = true
			break
		}
	}
	if !hasBinary {
		return
	}
	sm.Lower = make([]float64, sm.Cols)
	sm.Upper = make([]float64, sm.Cols)
	for j := range sm.Lower {
		sm.Lower[j], sm.Upper[j] = negInf, posInf
	}
	for _, name := range acc.order {
		blk := acc.blocks[name]
		if blk.table.Kind() != model.Binary {
			continue
		}
		for j := blk.start; j < blk.start+blk.sub.Size(); j++ {
			sm.Lower[j], sm.Upper[j] = 0, 1
		}
	}
}

func (b *Builder) exprVariables(expr model.Expression) ([]*model.Variable, error) {
	names := model.Refs(expr.Root)
	vars := make([]*model.Variable, 0, len(names))
	for _, name := range names {
		v, ok := b.model.Variable(name)
		if !ok {
			return nil, fmt.Errorf("engine: expression %q references unknown variable %q", expr.Label, name)
		}
		vars = append(vars, v)
	}
	return vars, nil
}

// eval evaluates a node at one expansion tuple.
func (a *accessor) eval(n model.Node, pi map[string]string) (*Matrix, error) {
	switch t := n.(type) {
	case *model.Num:
		return Scalar(t.Value), nil
	case *model.Ref:
		return a.matrixFor(t.Name, pi)
	case *model.Call:
		spec, ok := a.builder.reg.op(t.Op)
		if !ok {
			return nil, fmt.Errorf("engine: unknown operator %q", t.Op)
		}
		if spec.Arity >= 0 && len(t.Args) != spec.Arity {
			return nil, fmt.Errorf("engine: operator %q takes %d arguments, got %d", t.Op, spec.Arity, len(t.Args))
		}
		args := make([]*Matrix, len(t.Args))
		for i, arg := range t.Args {
			m, err := a.eval(arg, pi)
			if err != nil {
				return nil, err
			}
			args[i] = m
		}
		return spec.Eval(args)
	default:
		return nil, fmt.Errorf("engine: unsupported node %T", n)
	}
}
