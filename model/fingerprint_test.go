package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex/sets"
)

// buildFingerprintModel assembles the same structure on every call so two
// invocations must hash identically.
func buildFingerprintModel(t *testing.T, demand float64) *Model {
	t.Helper()
	techs := sets.MustNewSet("technologies", []string{"pv", "wind"},
		sets.WithFilter("clean", "pv"))
	regions := sets.MustNewSet("regions", []string{"north", "south"}, sets.WithRole(sets.InterProblem))
	m := New("energy")
	require.NoError(t, m.AddSet(techs))
	require.NoError(t, m.AddSet(regions))

	cost := MustNewDataTable("cost", sets.MustNewDomain(techs), Real, Exogenous())
	output := MustNewDataTable("output", sets.MustNewDomain(techs, regions), Real, Endogenous())
	require.NoError(t, m.AddTable(cost))
	require.NoError(t, m.AddTable(output))
	require.NoError(t, m.AddVariable(MustNewVariable("cost", cost, sets.Allocation{Rows: "technologies"})))
	require.NoError(t, m.AddVariable(MustNewVariable("output", output, sets.Allocation{Rows: "technologies"},
		WithSelection(sets.Selection{"technologies": {"pv"}}))))

	p := MustNewProblem("dispatch")
	p.MustAddExpression("demand", Ge(Sum(Var("output")), Lit(demand)))
	p.MustAddExpression("objective", Minimize(MatMul(Tran(Var("cost")), Var("output"))))
	require.NoError(t, m.AddProblem(p))
	return m
}

func TestFingerprintDeterministic(t *testing.T) {
	a := buildFingerprintModel(t, 10)
	b := buildFingerprintModel(t, 10)
	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.Len(t, a.Fingerprint(), 32)
}

func TestFingerprintSeesStructure(t *testing.T) {
	base := buildFingerprintModel(t, 10).Fingerprint()

	// a literal inside an expression changes the hash
	require.NotEqual(t, base, buildFingerprintModel(t, 11).Fingerprint())

	// an extra coordinate changes the hash
	m := New("energy")
	techs := sets.MustNewSet("technologies", []string{"pv", "wind", "gas"},
		sets.WithFilter("clean", "pv"))
	regions := sets.MustNewSet("regions", []string{"north", "south"}, sets.WithRole(sets.InterProblem))
	require.NoError(t, m.AddSet(techs))
	require.NoError(t, m.AddSet(regions))
	cost := MustNewDataTable("cost", sets.MustNewDomain(techs), Real, Exogenous())
	output := MustNewDataTable("output", sets.MustNewDomain(techs, regions), Real, Endogenous())
	require.NoError(t, m.AddTable(cost))
	require.NoError(t, m.AddTable(output))
	require.NoError(t, m.AddVariable(MustNewVariable("cost", cost, sets.Allocation{Rows: "technologies"})))
	require.NoError(t, m.AddVariable(MustNewVariable("output", output, sets.Allocation{Rows: "technologies"})))
	p := MustNewProblem("dispatch")
	p.MustAddExpression("demand", Ge(Sum(Var("output")), Lit(10)))
	p.MustAddExpression("objective", Minimize(MatMul(Tran(Var("cost")), Var("output"))))
	require.NoError(t, m.AddProblem(p))
	require.NotEqual(t, base, m.Fingerprint())
}

func TestFingerprintRoleRendering(t *testing.T) {
	require.Equal(t, "exogenous", roleString(Exogenous()))
	require.Equal(t, "constant(sum_vector)", roleString(Constant("sum_vector")))
	require.Equal(t, "per(market=endogenous,plant=exogenous)", roleString(PerSubproblem(map[string]RoleKind{
		"plant":  RoleExogenous,
		"market": RoleEndogenous,
	})))
}

func TestRenderNode(t *testing.T) {
	e := Le(MatMul(Tran(Var("c")), Var("q")), Add(Var("cap"), Lit(2.5)))
	require.Equal(t, "<=(@(tran(c),q),+(cap,2.5))", renderNode(e))
}
