package run_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex/run"
)

func TestMonitorFirstPassNeverConverges(t *testing.T) {
	assert := require.New(t)

	mon := run.NewMonitor(run.NormMaxAbs, 100)
	delta, converged := mon.Observe(map[string][]float64{"x": {1, 2}})
	assert.True(math.IsInf(delta, 1))
	assert.False(converged)
	assert.Equal(1, mon.Passes())

	// identical second pass converges under any tolerance
	delta, converged = mon.Observe(map[string][]float64{"x": {1, 2}})
	assert.Zero(delta)
	assert.True(converged)
}

func TestMonitorMaxAbs(t *testing.T) {
	assert := require.New(t)

	mon := run.NewMonitor(run.NormMaxAbs, 0.05)
	mon.Observe(map[string][]float64{"x": {2, 4}})

	delta, converged := mon.Observe(map[string][]float64{"x": {2.2, 4}})
	assert.InDelta(0.1, delta, 1e-12)
	assert.False(converged)

	delta, converged = mon.Observe(map[string][]float64{"x": {2.2, 4.1}})
	assert.InDelta(0.025, delta, 1e-12)
	assert.True(converged)
}

func TestMonitorZeroDeparture(t *testing.T) {
	assert := require.New(t)

	mon := run.NewMonitor(run.NormMaxAbs, 0.5)
	mon.Observe(map[string][]float64{"x": {0}})

	// leaving exactly zero has no relative scale
	delta, converged := mon.Observe(map[string][]float64{"x": {0.001}})
	assert.True(math.IsInf(delta, 1))
	assert.False(converged)

	delta, converged = mon.Observe(map[string][]float64{"x": {0.001}})
	assert.Zero(delta)
	assert.True(converged)
}

func TestMonitorRelL2(t *testing.T) {
	assert := require.New(t)

	mon := run.NewMonitor(run.NormRelL2, 0.05)
	mon.Observe(map[string][]float64{"x": {3, 4}})

	// change (0, 0.5) against previous norm 5
	delta, converged := mon.Observe(map[string][]float64{"x": {3, 4.5}})
	assert.InDelta(0.1, delta, 1e-12)
	assert.False(converged)

	delta, converged = mon.Observe(map[string][]float64{"x": {3, 4.5}})
	assert.Zero(delta)
	assert.True(converged)
}

func TestMonitorShapeChange(t *testing.T) {
	assert := require.New(t)

	mon := run.NewMonitor(run.NormMaxAbs, 100)
	mon.Observe(map[string][]float64{"x": {1}})
	delta, converged := mon.Observe(map[string][]float64{"y": {1}})
	assert.True(math.IsInf(delta, 1))
	assert.False(converged)
}
