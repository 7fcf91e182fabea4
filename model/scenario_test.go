package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex/sets"
)

func TestScenarioEnumeration(t *testing.T) {
	regions := sets.MustNewSet("regions", []string{"north", "south"}, sets.WithRole(sets.InterProblem))
	years := sets.MustNewSet("years", []string{"2030", "2040"}, sets.WithRole(sets.InterProblem))
	techs := sets.MustNewSet("technologies", []string{"pv"})

	m := New("m")
	require.NoError(t, m.AddSet(regions))
	require.NoError(t, m.AddSet(techs))
	require.NoError(t, m.AddSet(years))

	scenarios := m.Scenarios()
	require.Len(t, scenarios, 4)

	// Cartesian product in declared inter-set order
	keys := make([]string, len(scenarios))
	for i, s := range scenarios {
		keys[i] = s.Key()
	}
	require.Equal(t, []string{
		"north,2030", "north,2040", "south,2030", "south,2040",
	}, keys)

	c, ok := scenarios[1].Coord("regions")
	require.True(t, ok)
	require.Equal(t, "north", c)
	_, ok = scenarios[1].Coord("technologies")
	require.False(t, ok)

	fix := scenarios[2].Fix()
	require.Equal(t, sets.Selection{"regions": {"south"}, "years": {"2030"}}, fix)
}

func TestScenarioWithoutInterSets(t *testing.T) {
	m := New("m")
	require.NoError(t, m.AddSet(sets.MustNewSet("technologies", []string{"pv"})))
	scenarios := m.Scenarios()
	require.Len(t, scenarios, 1)
	require.Equal(t, "-", scenarios[0].Key())
	require.Empty(t, scenarios[0].Fix())
}
