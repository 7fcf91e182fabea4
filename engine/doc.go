// Package engine turns the symbolic layer into numbers: it binds variables
// to stored data or to decision columns, expands expressions over their
// intra-problem sets, applies the operator registry and assembles one
// solver.Model per (problem, scenario) pair.
//
// Everything here works on affine matrices: dense grids whose cells hold a
// constant plus linear terms over decision columns. Operations that would
// leave that space are rejected before any solver runs.
package engine
