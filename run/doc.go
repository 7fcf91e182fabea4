// Package run orchestrates solving: it walks a model's scenarios, builds
// each subproblem through the engine, drives the configured backend and
// writes solutions back to the store.
//
// Two modes exist. Independent mode solves every (problem, scenario) pair
// once, in parallel. Integrated mode additionally iterates each coupling
// group with block Gauss-Seidel until the values shared between its members
// stop moving, staging intermediate writes so only converged passes become
// visible.
package run
