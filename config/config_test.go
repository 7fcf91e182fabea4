package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex/config"
	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/sets"
)

const dispatchYAML = `
name: dispatch

sets:
  - name: plants
    coordinates: [coal, gas]
  - name: periods
    coordinates: [t1, t2]

tables:
  - name: demand
    domain: [periods]
  - name: cost
    domain: [plants]
  - name: cap
    domain: [plants]
  - name: ones
    domain: [plants]
    role:
      constant: sum_vector
  - name: output
    domain: [plants, periods]
    role: endogenous

variables:
  - name: d
    table: demand
    rows: periods
  - name: c
    table: cost
    rows: plants
  - name: u
    table: cap
    rows: plants
  - name: onesp
    table: ones
    rows: plants
  - name: out
    table: output
    rows: plants
    cols: periods

problems:
  - name: dispatch
    expressions:
      - label: balance
        expr: tran(out) @ onesp == d
      - label: capacity
        expr: out <= u
      - label: nonneg
        expr: out >= 0
      - label: total_cost
        expr: Minimize(sum(mult(c, out)))
`

// handBuiltDispatch is the programmatic twin of dispatchYAML.
func handBuiltDispatch(t *testing.T) *model.Model {
	t.Helper()
	plants := sets.MustNewSet("plants", []string{"coal", "gas"})
	periods := sets.MustNewSet("periods", []string{"t1", "t2"})
	m := model.New("dispatch")
	require.NoError(t, m.AddSet(plants))
	require.NoError(t, m.AddSet(periods))

	demand := model.MustNewDataTable("demand", sets.MustNewDomain(periods), model.Real, model.Exogenous())
	cost := model.MustNewDataTable("cost", sets.MustNewDomain(plants), model.Real, model.Exogenous())
	cap := model.MustNewDataTable("cap", sets.MustNewDomain(plants), model.Real, model.Exogenous())
	ones := model.MustNewDataTable("ones", sets.MustNewDomain(plants), model.Real, model.Constant("sum_vector"))
	output := model.MustNewDataTable("output", sets.MustNewDomain(plants, periods), model.Real, model.Endogenous())
	for _, tbl := range []*model.DataTable{demand, cost, cap, ones, output} {
		require.NoError(t, m.AddTable(tbl))
	}

	require.NoError(t, m.AddVariable(model.MustNewVariable("d", demand, sets.Allocation{Rows: "periods"})))
	require.NoError(t, m.AddVariable(model.MustNewVariable("c", cost, sets.Allocation{Rows: "plants"})))
	require.NoError(t, m.AddVariable(model.MustNewVariable("u", cap, sets.Allocation{Rows: "plants"})))
	require.NoError(t, m.AddVariable(model.MustNewVariable("onesp", ones, sets.Allocation{Rows: "plants"})))
	require.NoError(t, m.AddVariable(model.MustNewVariable("out", output, sets.Allocation{Rows: "plants", Cols: "periods"})))

	p := model.MustNewProblem("dispatch")
	p.MustAddExpression("balance", model.Eq(
		model.MatMul(model.Tran(model.Var("out")), model.Var("onesp")),
		model.Var("d"),
	))
	p.MustAddExpression("capacity", model.Le(model.Var("out"), model.Var("u")))
	p.MustAddExpression("nonneg", model.Ge(model.Var("out"), model.Lit(0)))
	p.MustAddExpression("total_cost", model.Minimize(model.Sum(model.Mult(model.Var("c"), model.Var("out")))))
	require.NoError(t, m.AddProblem(p))
	return m
}

func TestParseDispatchModel(t *testing.T) {
	assert := require.New(t)

	m, err := config.Parse([]byte(dispatchYAML))
	assert.NoError(err)
	assert.Equal("dispatch", m.Name())
	assert.Len(m.Sets(), 2)
	assert.Len(m.Tables(), 5)
	assert.Len(m.Variables(), 5)
	assert.Len(m.Problems(), 1)

	ones, ok := m.Table("ones")
	assert.True(ok)
	assert.Equal(model.RoleConstant, ones.Role().Kind())
	assert.Equal("sum_vector", ones.Role().Generator())

	// the YAML form describes exactly the structure of the programmatic form
	assert.Equal(handBuiltDispatch(t).Fingerprint(), m.Fingerprint())
}

const coupledYAML = `
name: market

sets:
  - name: techs
    coordinates: [pv, wind]

tables:
  - name: price
    domain: [techs]
    role:
      per_subproblem:
        market: endogenous
        plant: exogenous
  - name: supply
    domain: [techs]
    role:
      per_subproblem:
        plant: endogenous
        market: exogenous

variables:
  - name: price
    table: price
    rows: techs
  - name: supply
    table: supply
    rows: techs

problems:
  - name: market
    group: exchange
    order: 1
    expressions:
      - label: clearing
        expr: price == 10 - 0.5 * supply
      - label: pos
        expr: price >= 0
      - label: obj
        expr: Minimize(sum(price))
  - name: plant
    group: exchange
    order: 2
    expressions:
      - label: response
        expr: supply == 2 + 0.5 * price
      - label: pos
        expr: supply >= 0
      - label: obj
        expr: Minimize(sum(supply))
`

func TestParseCoupledModel(t *testing.T) {
	assert := require.New(t)

	m, err := config.Parse([]byte(coupledYAML))
	assert.NoError(err)

	groups := m.CouplingGroups()
	assert.Len(groups, 1)
	assert.Equal("exchange", groups[0].Name)
	assert.Len(groups[0].Problems, 2)
	assert.Equal("market", groups[0].Problems[0].Name())
	assert.Equal("plant", groups[0].Problems[1].Name())

	price, ok := m.Table("price")
	assert.True(ok)
	assert.True(price.Role().IsEndogenousFor("market"))
	assert.False(price.Role().IsEndogenousFor("plant"))
}

func TestParseErrors(t *testing.T) {
	assert := require.New(t)

	_, err := config.Parse([]byte("name: x\ntables:\n  - name: t\n    domain: [ghost]\n"))
	assert.ErrorContains(err, `unknown set "ghost"`)

	_, err = config.Parse([]byte("name: x\nvariables:\n  - name: v\n    table: ghost\n"))
	assert.ErrorContains(err, `unknown table "ghost"`)

	_, err = config.Parse([]byte("name: x\ntables:\n  - name: t\n    domain: []\n    role: sometimes\n"))
	assert.ErrorContains(err, `unknown role "sometimes"`)

	_, err = config.Parse([]byte("name: x\ntables:\n  - name: t\n    domain: []\n    kind: quaternion\n"))
	assert.ErrorContains(err, "unknown value kind")

	_, err = config.Parse([]byte("x: [1, 2\n"))
	assert.Error(err)

	_, err = config.Parse([]byte("sets:\n  - name: s\n    coordinates: [a]\n"))
	assert.ErrorContains(err, "model name required")

	// no problems: structural validation runs as part of Parse
	_, err = config.Parse([]byte("name: x\n"))
	assert.Error(err)
}

func TestParseExpressionErrorContext(t *testing.T) {
	bad := `
name: x
sets:
  - name: s
    coordinates: [a]
tables:
  - name: t
    domain: [s]
variables:
  - name: v
    table: t
    rows: s
problems:
  - name: p
    expressions:
      - label: broken
        expr: v +
`
	_, err := config.Parse([]byte(bad))
	require.Error(t, err)
	require.ErrorContains(t, err, `problem "p"`)
	require.ErrorContains(t, err, `expression "broken"`)
}

func TestLoadFromFile(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "model.yml")
	assert.NoError(os.WriteFile(path, []byte(dispatchYAML), 0o600))

	m, err := config.Load(path)
	assert.NoError(err)
	assert.Equal("dispatch", m.Name())

	_, err = config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(err)
}

func TestLoadData(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "data.yml")
	assert.NoError(os.WriteFile(path, []byte("tables:\n  demand: [10, 15]\n  cost: [5, 12.5]\n"), 0o600))

	tables, err := config.LoadData(path)
	assert.NoError(err)
	assert.Equal([]float64{10, 15}, tables["demand"])
	assert.Equal([]float64{5, 12.5}, tables["cost"])

	_, err = config.LoadData(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(err)
}
