package engine

import (
	"github.com/couplex/couplex/model"
)

// expansion is the grid an expression instantiates over: the union of the
// participating variables' intra-problem sets in first-introduced order,
// each narrowed to the coordinates all participants admit.
type expansion struct {
	names  []string
	coords [][]string
}

func newExpansion(vars []*model.Variable) expansion {
	var e expansion
	pos := make(map[string]int)
	for _, v := range vars {
		for _, name := range v.Allocation().Intra {
			allowed := v.IntraCoords(name)
			i, seen := pos[name]
			if !seen {
				pos[name] = len(e.names)
				e.names = append(e.names, name)
				e.coords = append(e.coords, allowed)
				continue
			}
			e.coords[i] = intersect(e.coords[i], allowed)
		}
	}
	return e
}

// intersect keeps the elements of a that also appear in b, preserving a's
// order.
func intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, x := range b {
		in[x] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, x := range a {
		if _, ok := in[x]; ok {
			out = append(out, x)
		}
	}
	return out
}

// size returns the number of expansion tuples.
func (e expansion) size() int {
	n := 1
	for _, c := range e.coords {
		n *= len(c)
	}
	return n
}

// each walks the expansion grid row-major, calling fn with one coordinate
// per set. Expressions with no intra sets get a single empty tuple.
func (e expansion) each(fn func(pi map[string]string) error) error {
	pi := make(map[string]string, len(e.names))
	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(e.names) {
			return fn(pi)
		}
		for _, c := range e.coords[depth] {
			pi[e.names[depth]] = c
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(0)
}
