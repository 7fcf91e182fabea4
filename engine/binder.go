package engine

import (
	"fmt"
	"strings"

	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/sets"
	"github.com/couplex/couplex/store"
)

// Block is one contiguous run of decision columns backing an endogenous
// table in a single (problem, scenario) build. Indices maps the column
// offset within the block to the table's flat domain index under the
// scenario's inter-problem coordinates.
type Block struct {
	Table   string
	Start   int
	Size    int
	Indices []int
}

// binding caches the matrices of one variable across expansion tuples.
// Tuples that only differ in sets the variable does not span share one
// matrix instance; that is what makes broadcasting free.
type binding struct {
	v    *model.Variable
	memo map[string]*Matrix
}

// accessor binds variable references for one (problem, scenario) build:
// constants are generated, exogenous tables read from the store, endogenous
// tables mapped onto decision columns.
type accessor struct {
	builder  *Builder
	problem  *model.Problem
	scenario model.Scenario
	src      store.Reader

	bindings map[string]*binding
	blocks   map[string]*blockState
	order    []string
	nextCol  int
}

type blockState struct {
	table *model.DataTable
	start int
	sub   *sets.Subdomain
}

func newAccessor(b *Builder, p *model.Problem, sc model.Scenario, src store.Reader) *accessor {
	return &accessor{
		builder:  b,
		problem:  p,
		scenario: sc,
		src:      src,
		bindings: make(map[string]*binding),
		blocks:   make(map[string]*blockState),
	}
}

// scenarioSelection narrows the scenario fix to the sets present in d.
func (a *accessor) scenarioSelection(d *sets.Domain) sets.Selection {
	sel := sets.Selection{}
	for name, coords := range a.scenario.Fix() {
		if d.Contains(name) {
			sel[name] = coords
		}
	}
	return sel
}

func (a *accessor) ensureBlock(t *model.DataTable) (*blockState, error) {
	if blk, ok := a.blocks[t.Name()]; ok {
		return blk, nil
	}
	sub, err := t.Domain().Restrict(a.scenarioSelection(t.Domain()))
	if err != nil {
		return nil, err
	}
	blk := &blockState{table: t, start: a.nextCol, sub: sub}
	a.nextCol += sub.Size()
	a.blocks[t.Name()] = blk
	a.order = append(a.order, t.Name())
	return blk, nil
}

// blockList returns the build's decision blocks in creation order.
func (a *accessor) blockList() []Block {
	out := make([]Block, 0, len(a.order))
	for _, name := range a.order {
		blk := a.blocks[name]
		out = append(out, Block{
			Table:   name,
			Start:   blk.start,
			Size:    blk.sub.Size(),
			Indices: blk.sub.ParentIndices(),
		})
	}
	return out
}

// memoKey folds only the coordinates of sets the variable spans, so tuples
// differing elsewhere hit the same cache entry.
func memoKey(v *model.Variable, pi map[string]string) string {
	intra := v.Allocation().Intra
	if len(intra) == 0 {
		return ""
	}
	parts := make([]string, len(intra))
	for i, name := range intra {
		parts[i] = pi[name]
	}
	return strings.Join(parts, ",")
}

// matrixFor binds one variable reference at one expansion tuple.
func (a *accessor) matrixFor(name string, pi map[string]string) (*Matrix, error) {
	bd, ok := a.bindings[name]
	if !ok {
		v, found := a.builder.model.Variable(name)
		if !found {
			return nil, fmt.Errorf("engine: unknown variable %q", name)
		}
		bd = &binding{v: v, memo: make(map[string]*Matrix)}
		a.bindings[name] = bd
	}

	key := memoKey(bd.v, pi)
	if m, ok := bd.memo[key]; ok {
		return m, nil
	}

	var m *Matrix
	var err error
	role := bd.v.Table().Role()
	switch role.Resolve(a.problem.Name()) {
	case model.RoleConstant:
		m, err = a.generate(bd.v)
	case model.RoleEndogenous:
		m, err = a.decision(bd.v, pi)
	default:
		m, err = a.read(bd.v, pi)
	}
	if err != nil {
		return nil, err
	}
	bd.memo[key] = m
	return m, nil
}

// generate produces a constant table's matrix for the variable's shape.
func (a *accessor) generate(v *model.Variable) (*Matrix, error) {
	gen := v.Table().Role().Generator()
	fn, ok := a.builder.reg.constant(gen)
	if !ok {
		return nil, fmt.Errorf("engine: unknown constant generator %q for table %q", gen, v.Table().Name())
	}
	rows, cols := v.Shape()
	return fn(rows, cols)
}

// tupleIndices enumerates the table's flat indices covered by the variable's
// matrix cells, row-major.
func (a *accessor) tupleIndices(v *model.Variable, pi map[string]string) ([]int, error) {
	t := v.Table()
	d := t.Domain()
	alloc := v.Allocation()
	rowCoords, colCoords := v.RowCoords(), v.ColCoords()

	intra := make(map[string]struct{}, len(alloc.Intra))
	for _, s := range alloc.Intra {
		intra[s] = struct{}{}
	}

	indices := make([]int, 0, len(rowCoords)*len(colCoords))
	tuple := make([]string, d.NumSets())
	for _, rc := range rowCoords {
		for _, cc := range colCoords {
			for k := 0; k < d.NumSets(); k++ {
				s := d.Set(k)
				switch {
				case s.Name() == alloc.Rows:
					tuple[k] = rc
				case s.Name() == alloc.Cols:
					tuple[k] = cc
				default:
					if _, ok := intra[s.Name()]; ok {
						c, present := pi[s.Name()]
						if !present {
							return nil, fmt.Errorf("engine: no expansion coordinate for set %q of variable %q", s.Name(), v.Name())
						}
						tuple[k] = c
						continue
					}
					c, present := a.scenario.Coord(s.Name())
					if !present {
						return nil, fmt.Errorf("engine: no scenario coordinate for set %q of table %q", s.Name(), t.Name())
					}
					tuple[k] = c
				}
			}
			idx, err := d.Index(tuple)
			if err != nil {
				return nil, err
			}
			indices = append(indices, idx)
		}
	}
	return indices, nil
}

// read binds an exogenous variable slice from the store.
func (a *accessor) read(v *model.Variable, pi map[string]string) (*Matrix, error) {
	indices, err := a.tupleIndices(v, pi)
	if err != nil {
		return nil, err
	}
	vals, err := a.src.Read(v.Table().Name(), indices)
	if err != nil {
		return nil, err
	}
	rows, cols := v.Shape()
	data := make([]float64, len(indices))
	for k := range indices {
		x, ok := vals.Get(k)
		if !ok {
			if f := a.builder.fill; f != nil {
				data[k] = *f
				continue
			}
			return nil, &store.MissingDataError{
				Table: v.Table().Name(),
				Index: indices[k],
				Tuple: v.Table().Domain().TupleAt(indices[k]),
			}
		}
		data[k] = x
	}
	return NewNumeric(rows, cols, data)
}

// decision binds an endogenous variable slice onto its table's decision
// block, one unit-coefficient term per cell.
func (a *accessor) decision(v *model.Variable, pi map[string]string) (*Matrix, error) {
	blk, err := a.ensureBlock(v.Table())
	if err != nil {
		return nil, err
	}
	indices, err := a.tupleIndices(v, pi)
	if err != nil {
		return nil, err
	}
	rows, cols := v.Shape()
	out := zeros(rows, cols)
	out.ensureTerms()
	for k, parent := range indices {
		local, err := blk.sub.Index(blk.sub.Domain().TupleAt(parent))
		if err != nil {
			return nil, err
		}
		out.terms[k] = []Term{{Col: blk.start + local, Coef: 1}}
	}
	return out, nil
}
