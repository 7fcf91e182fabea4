// Package sets implements the index-set and domain algebra underlying couplex
// models: named coordinate sets, ordered domains over them, sub-domain
// restriction, and the partition of a domain into row, column and
// intra-problem axes.
package sets
