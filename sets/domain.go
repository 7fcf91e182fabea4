package sets

import (
	"fmt"
	"strings"
)

// Selection restricts a domain, mapping set names to the coordinates to keep.
// Sets absent from the map keep all their coordinates. Kept coordinates are
// always enumerated in the set's declared order, regardless of the order they
// appear in the selection.
type Selection map[string][]string

// Domain is an ordered sequence of distinct Sets. Its Cartesian product,
// enumerated row-major in declared set order, indexes a data table.
type Domain struct {
	sets    []*Set
	pos     map[string]int
	strides []int
	size    int
}

// NewDomain builds a Domain over the given sets. Set names must be distinct.
// A domain over zero sets is the scalar domain: size one, a single empty
// tuple.
func NewDomain(ss ...*Set) (*Domain, error) {
	d := &Domain{
		sets: append([]*Set(nil), ss...),
		pos:  make(map[string]int, len(ss)),
	}
	for i, s := range ss {
		if s == nil {
			return nil, fmt.Errorf("domain: nil set at position %d", i)
		}
		if _, dup := d.pos[s.Name()]; dup {
			return nil, fmt.Errorf("domain: set %q appears twice", s.Name())
		}
		d.pos[s.Name()] = i
	}
	d.strides = make([]int, len(ss))
	d.size = 1
	for i := len(ss) - 1; i >= 0; i-- {
		d.strides[i] = d.size
		d.size *= ss[i].Len()
	}
	return d, nil
}

// MustNewDomain is NewDomain, panicking on error.
func MustNewDomain(ss ...*Set) *Domain {
	d, err := NewDomain(ss...)
	if err != nil {
		panic(err)
	}
	return d
}

// NumSets returns the number of sets in the domain.
func (d *Domain) NumSets() int { return len(d.sets) }

// Size returns the Cartesian-product cardinality.
func (d *Domain) Size() int { return d.size }

// Sets returns a copy of the ordered sets.
func (d *Domain) Sets() []*Set { return append([]*Set(nil), d.sets...) }

// Set returns the i-th set.
func (d *Domain) Set(i int) *Set { return d.sets[i] }

// Position returns the position of a set by name.
func (d *Domain) Position(name string) (int, bool) {
	i, ok := d.pos[name]
	return i, ok
}

// Contains reports whether the domain holds a set with that name.
func (d *Domain) Contains(name string) bool {
	_, ok := d.pos[name]
	return ok
}

// Index returns the row-major flat index of a coordinate tuple given in
// declared set order.
func (d *Domain) Index(tuple []string) (int, error) {
	if len(tuple) != len(d.sets) {
		return 0, fmt.Errorf("domain: tuple has %d labels, want %d", len(tuple), len(d.sets))
	}
	idx := 0
	for i, label := range tuple {
		j, ok := d.sets[i].Index(label)
		if !ok {
			return 0, fmt.Errorf("domain: %q is not a coordinate of set %q", label, d.sets[i].Name())
		}
		idx += j * d.strides[i]
	}
	return idx, nil
}

// TupleAt returns the coordinate tuple at a flat index.
func (d *Domain) TupleAt(idx int) []string {
	tuple := make([]string, len(d.sets))
	for i, s := range d.sets {
		tuple[i] = s.Coord((idx / d.strides[i]) % s.Len())
	}
	return tuple
}

// Each enumerates all tuples row-major, stopping early when fn returns false.
func (d *Domain) Each(fn func(idx int, tuple []string) bool) {
	for idx := 0; idx < d.size; idx++ {
		if !fn(idx, d.TupleAt(idx)) {
			return
		}
	}
}

// Restrict returns the sub-domain selected by sel. Selected coordinates must
// belong to their set; selected set names must belong to the domain. A nil
// selection keeps everything.
func (d *Domain) Restrict(sel Selection) (*Subdomain, error) {
	keep := make([][]int, len(d.sets))
	for i, s := range d.sets {
		coords, restricted := sel[s.Name()]
		if !restricted {
			keep[i] = allIndices(s.Len())
			continue
		}
		ki := make([]int, 0, len(coords))
		seen := make(map[int]struct{}, len(coords))
		for _, c := range coords {
			j, ok := s.Index(c)
			if !ok {
				return nil, fmt.Errorf("restrict: %q is not a coordinate of set %q", c, s.Name())
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			ki = append(ki, j)
		}
		// canonical order: the set's declared coordinate order
		sortInts(ki)
		keep[i] = ki
	}
	for name := range sel {
		if !d.Contains(name) {
			return nil, fmt.Errorf("restrict: set %q not in domain", name)
		}
	}
	return newSubdomain(d, keep), nil
}

// String renders the domain as its set names.
func (d *Domain) String() string {
	names := make([]string, len(d.sets))
	for i, s := range d.sets {
		names[i] = s.Name()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

func allIndices(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j] < xs[j-1]; j-- {
			xs[j], xs[j-1] = xs[j-1], xs[j]
		}
	}
}

// Subdomain is an ordered restriction of a Domain: per set, a subset of
// coordinate positions in declared order. Tuples enumerate row-major like the
// parent domain.
type Subdomain struct {
	domain  *Domain
	keep    [][]int
	sizes   []int
	strides []int
	size    int
}

func newSubdomain(d *Domain, keep [][]int) *Subdomain {
	sd := &Subdomain{
		domain:  d,
		keep:    keep,
		sizes:   make([]int, len(keep)),
		strides: make([]int, len(keep)),
	}
	sd.size = 1
	for i := len(keep) - 1; i >= 0; i-- {
		sd.sizes[i] = len(keep[i])
		sd.strides[i] = sd.size
		sd.size *= len(keep[i])
	}
	return sd
}

// Domain returns the parent domain.
func (sd *Subdomain) Domain() *Domain { return sd.domain }

// Size returns the number of qualifying tuples.
func (sd *Subdomain) Size() int { return sd.size }

// Coords returns the kept coordinates of the i-th set, in set order.
func (sd *Subdomain) Coords(i int) []string {
	s := sd.domain.Set(i)
	r := make([]string, len(sd.keep[i]))
	for k, j := range sd.keep[i] {
		r[k] = s.Coord(j)
	}
	return r
}

// ParentIndex maps a local (subdomain) index to the parent domain flat index.
func (sd *Subdomain) ParentIndex(local int) int {
	idx := 0
	for i := range sd.keep {
		pos := (local / sd.strides[i]) % sd.sizes[i]
		idx += sd.keep[i][pos] * sd.domain.strides[i]
	}
	return idx
}

// ParentIndices returns all parent flat indices in subdomain order.
func (sd *Subdomain) ParentIndices() []int {
	r := make([]int, sd.size)
	for i := range r {
		r[i] = sd.ParentIndex(i)
	}
	return r
}

// TupleAt returns the coordinate tuple at a local index.
func (sd *Subdomain) TupleAt(local int) []string {
	return sd.domain.TupleAt(sd.ParentIndex(local))
}

// Index maps a coordinate tuple (one per set, domain order) to its local
// index. Tuples outside the restriction are an error.
func (sd *Subdomain) Index(tuple []string) (int, error) {
	if len(tuple) != len(sd.keep) {
		return 0, fmt.Errorf("index: tuple has %d coordinates, domain has %d sets", len(tuple), len(sd.keep))
	}
	local := 0
	for i, s := range sd.domain.sets {
		j, ok := s.Index(tuple[i])
		if !ok {
			return 0, fmt.Errorf("index: %q is not a coordinate of set %q", tuple[i], s.Name())
		}
		pos := -1
		for k, kept := range sd.keep[i] {
			if kept == j {
				pos = k
				break
			}
		}
		if pos < 0 {
			return 0, fmt.Errorf("index: coordinate %q of set %q is outside the restriction", tuple[i], s.Name())
		}
		local += pos * sd.strides[i]
	}
	return local, nil
}

// Each enumerates qualifying tuples, stopping early when fn returns false.
func (sd *Subdomain) Each(fn func(local, parent int, tuple []string) bool) {
	for local := 0; local < sd.size; local++ {
		parent := sd.ParentIndex(local)
		if !fn(local, parent, sd.domain.TupleAt(parent)) {
			return
		}
	}
}

// Restrict applies a further selection to the subdomain. Restricting twice
// with the same selection is idempotent.
func (sd *Subdomain) Restrict(sel Selection) (*Subdomain, error) {
	keep := make([][]int, len(sd.keep))
	for i, s := range sd.domain.sets {
		coords, restricted := sel[s.Name()]
		if !restricted {
			keep[i] = append([]int(nil), sd.keep[i]...)
			continue
		}
		want := make(map[int]struct{}, len(coords))
		for _, c := range coords {
			j, ok := s.Index(c)
			if !ok {
				return nil, fmt.Errorf("restrict: %q is not a coordinate of set %q", c, s.Name())
			}
			want[j] = struct{}{}
		}
		ki := make([]int, 0, len(coords))
		for _, j := range sd.keep[i] {
			if _, ok := want[j]; ok {
				ki = append(ki, j)
			}
		}
		keep[i] = ki
	}
	for name := range sel {
		if !sd.domain.Contains(name) {
			return nil, fmt.Errorf("restrict: set %q not in domain", name)
		}
	}
	return newSubdomain(sd.domain, keep), nil
}
