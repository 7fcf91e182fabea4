// Package model holds the symbolic description of a family of optimization
// problems: data tables over set domains, variables binding tables to
// row/column/intra-problem allocations, expression trees over registered
// operators, and problems grouped for coupled solving.
//
// A Model is assembled once from configuration, validated eagerly, and is
// read-only afterwards; only table values change during a run, and those live
// behind the store contract, not here.
package model
