// Package utils provides small helpers shared by couplex packages.
package utils

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Product returns the product of dims. An empty slice yields 1.
func Product(dims []int) int {
	r := 1
	for _, d := range dims {
		r *= d
	}
	return r
}

// SortedKeys returns the keys of m in ascending order. Map iteration order is
// not deterministic; every walk that affects output or numbering goes through
// this.
func SortedKeys[M ~map[K]V, K constraints.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
