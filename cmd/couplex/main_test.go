package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/couplex/couplex"
	"github.com/couplex/couplex/run"
)

const testModelYAML = `
name: dispatch

sets:
  - name: plants
    coordinates: [coal, gas]

tables:
  - name: cost
    domain: [plants]
  - name: output
    domain: [plants]
    role: endogenous

variables:
  - name: c
    table: cost
    rows: plants
  - name: out
    table: output
    rows: plants

problems:
  - name: dispatch
    expressions:
      - label: capacity
        expr: out <= 10
      - label: nonneg
        expr: out >= 0
      - label: total_cost
        expr: Minimize(sum(mult(c, out)))
`

func TestLoadModel(t *testing.T) {
	assert := require.New(t)

	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	assert.NoError(os.WriteFile(path, []byte(testModelYAML), 0600))

	m, err := loadModel(path)
	assert.NoError(err)
	assert.Equal("dispatch", m.Name())
	assert.Len(m.Problems(), 1)

	_, err = loadModel(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(err, errNotFound)
}

func TestRunConfig(t *testing.T) {
	assert := require.New(t)

	fMode = "integrated"
	fNorm = "rel_l2"
	fTolerance = 0.5
	fMaxIterations = 3
	fParallelism = 2
	fBestEffort = true
	fMissingZero = true

	cfg, err := runConfig()
	assert.NoError(err)
	assert.Equal(run.ModeIntegrated, cfg.Mode)
	assert.Equal(run.NormRelL2, cfg.Norm)
	assert.Equal(run.MissingZero, cfg.Missing)
	assert.Equal(0.5, cfg.Tolerance)
	assert.Equal(3, cfg.MaxIterations)
	assert.Equal(2, cfg.Parallelism)
	assert.True(cfg.BestEffort)

	fMode = "sideways"
	_, err = runConfig()
	assert.Error(err)

	fMode = "independent"
	fNorm = "manhattan"
	_, err = runConfig()
	assert.Error(err)

	fNorm = "max_abs"
	fMissingZero = false
}

func TestBuildString(t *testing.T) {
	assert := require.New(t)
	assert.True(strings.HasSuffix(buildString(), couplex.Version.String()))
}
