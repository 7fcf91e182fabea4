// Package couplex turns symbolic descriptions of families of convex
// optimization problems into concrete numeric models, solves them, and writes
// the results back to storage.
//
// A model is described with abstract index sets, data tables over domains of
// those sets, and linear symbolic expressions (see the model package). The
// engine package expands expressions into numeric constraint matrices, the
// solver package defines the backend contract (a simplex backend over gonum
// ships in solver/simplexlp), and the run package orchestrates independent
// (parallel) solving as well as iterative block Gauss-Seidel coupling of
// interdependent subproblems with convergence monitoring.
//
// Values live behind the store contract (store package); in-memory and
// BadgerDB implementations ship in store/memstore and store/badgerstore.
// Model definitions can be loaded from YAML with the config package.
package couplex

import (
	"github.com/blang/semver/v4"
)

// Version of the couplex library.
var Version = semver.MustParse("0.1.0")
