// Package solver defines the numeric problem handed to optimization
// backends: a linear program in compressed sparse row form, the backend
// contract, and the options shared by all backends.
//
// Backends live in subpackages; solver/simplexlp wraps the gonum simplex.
package solver
