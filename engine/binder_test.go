package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/sets"
	"github.com/couplex/couplex/store"
	"github.com/couplex/couplex/store/memstore"
)

// bindModel is a two-set dispatch fragment: exogenous costs per plant,
// endogenous output per plant and period.
func bindModel(t *testing.T) (*model.Model, *model.Problem) {
	t.Helper()

	plants := sets.MustNewSet("plants", []string{"coal", "gas"})
	periods := sets.MustNewSet("periods", []string{"t1", "t2"})

	m := model.New("bind")
	require.NoError(t, m.AddSet(plants))
	require.NoError(t, m.AddSet(periods))

	cost := model.MustNewDataTable("cost", sets.MustNewDomain(plants), model.Real, model.Exogenous())
	output := model.MustNewDataTable("output", sets.MustNewDomain(plants, periods), model.Real, model.Endogenous())
	require.NoError(t, m.AddTable(cost))
	require.NoError(t, m.AddTable(output))

	require.NoError(t, m.AddVariable(model.MustNewVariable("c", cost, sets.Allocation{Rows: "plants"})))
	require.NoError(t, m.AddVariable(model.MustNewVariable("out", output, sets.Allocation{
		Rows:  "plants",
		Intra: []string{"periods"},
	})))

	p := model.MustNewProblem("dispatch")
	p.MustAddExpression("nonneg", model.Ge(model.Var("out"), model.Lit(0)))
	p.MustAddExpression("total", model.Minimize(model.Sum(model.Mult(model.Var("c"), model.Var("out")))))
	require.NoError(t, m.AddProblem(p))
	return m, p
}

func bindStore(t *testing.T) store.Store {
	t.Helper()
	s := memstore.New()
	require.NoError(t, s.Register("cost", 2))
	require.NoError(t, s.Write("cost", []int{0, 1}, store.Filled([]float64{2, 5})))
	return s
}

func TestBinderBroadcastSharing(t *testing.T) {
	assert := require.New(t)

	m, p := bindModel(t)
	b, err := NewBuilder(m)
	assert.NoError(err)

	acc := newAccessor(b, p, m.Scenarios()[0], bindStore(t))

	// cost does not span periods: both tuples must hit the same instance.
	m1, err := acc.matrixFor("c", map[string]string{"periods": "t1"})
	assert.NoError(err)
	m2, err := acc.matrixFor("c", map[string]string{"periods": "t2"})
	assert.NoError(err)
	assert.Same(m1, m2)
	assert.Equal([]float64{2, 5}, m1.consts)

	// output does: distinct tuples get distinct column slices.
	o1, err := acc.matrixFor("out", map[string]string{"periods": "t1"})
	assert.NoError(err)
	o2, err := acc.matrixFor("out", map[string]string{"periods": "t2"})
	assert.NoError(err)
	assert.NotSame(o1, o2)
	assert.Equal([]Term{{Col: 0, Coef: 1}}, o1.TermsAt(0, 0))
	assert.Equal([]Term{{Col: 2, Coef: 1}}, o1.TermsAt(1, 0))
	assert.Equal([]Term{{Col: 1, Coef: 1}}, o2.TermsAt(0, 0))
	assert.Equal([]Term{{Col: 3, Coef: 1}}, o2.TermsAt(1, 0))

	// one block spanning the whole endogenous table
	blocks := acc.blockList()
	assert.Len(blocks, 1)
	assert.Equal("output", blocks[0].Table)
	assert.Equal(0, blocks[0].Start)
	assert.Equal(4, blocks[0].Size)
	assert.Equal([]int{0, 1, 2, 3}, blocks[0].Indices)
}

func TestBinderMissingData(t *testing.T) {
	assert := require.New(t)

	m, p := bindModel(t)
	b, err := NewBuilder(m)
	assert.NoError(err)

	s := memstore.New()
	assert.NoError(s.Register("cost", 2))
	assert.NoError(s.Write("cost", []int{0}, store.Filled([]float64{2})))

	acc := newAccessor(b, p, m.Scenarios()[0], s)
	_, err = acc.matrixFor("c", map[string]string{"periods": "t1"})
	var missing *store.MissingDataError
	assert.ErrorAs(err, &missing)
	assert.Equal("cost", missing.Table)
	assert.Equal([]string{"gas"}, missing.Tuple)
}

func TestExpansionUnionAndIntersection(t *testing.T) {
	assert := require.New(t)

	techs := sets.MustNewSet("techs", []string{"pv", "wind", "gas"})
	years := sets.MustNewSet("years", []string{"2030", "2040"})

	tbl := model.MustNewDataTable("flow", sets.MustNewDomain(techs, years), model.Real, model.Endogenous())

	a := model.MustNewVariable("a", tbl, sets.Allocation{Intra: []string{"techs", "years"}},
		model.WithSelection(sets.Selection{"techs": {"pv", "wind"}}))
	b := model.MustNewVariable("b", tbl, sets.Allocation{Intra: []string{"techs", "years"}},
		model.WithSelection(sets.Selection{"techs": {"wind", "gas"}}))

	e := newExpansion([]*model.Variable{a, b})
	assert.Equal([]string{"techs", "years"}, e.names)
	assert.Equal([]string{"wind"}, e.coords[0])
	assert.Equal([]string{"2030", "2040"}, e.coords[1])
	assert.Equal(2, e.size())

	var seen []string
	err := e.each(func(pi map[string]string) error {
		seen = append(seen, pi["techs"]+"/"+pi["years"])
		return nil
	})
	assert.NoError(err)
	assert.Equal([]string{"wind/2030", "wind/2040"}, seen)
}

func TestExpansionNoIntraSets(t *testing.T) {
	assert := require.New(t)

	e := newExpansion(nil)
	assert.Equal(1, e.size())
	calls := 0
	assert.NoError(e.each(func(pi map[string]string) error {
		calls++
		assert.Empty(pi)
		return nil
	}))
	assert.Equal(1, calls)
}
