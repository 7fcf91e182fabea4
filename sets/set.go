package sets

import (
	"errors"
	"fmt"

	"github.com/couplex/couplex/internal/utils"
)

// Role tags how a Set participates in model expansion.
type Role uint8

const (
	// Dimension sets index data within one problem instance (rows, columns
	// or intra-problem expansion).
	Dimension Role = iota
	// InterProblem sets enumerate independent problem instances: one
	// scenario per coordinate combination.
	InterProblem
)

func (r Role) String() string {
	switch r {
	case Dimension:
		return "dimension"
	case InterProblem:
		return "inter-problem"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Set is a named, ordered, immutable list of coordinate labels, one dimension
// of a model. Optional named filters select subsets of the coordinates.
type Set struct {
	name    string
	coords  []string
	index   map[string]int
	role    Role
	filters map[string][]string
}

// SetOption configures a Set at construction.
type SetOption func(*Set) error

// WithRole sets the role of the Set. Default is Dimension.
func WithRole(r Role) SetOption {
	return func(s *Set) error {
		if r != Dimension && r != InterProblem {
			return fmt.Errorf("unknown set role %d", r)
		}
		s.role = r
		return nil
	}
}

// WithFilter declares a named filter selecting a subset of the coordinates.
func WithFilter(name string, coords ...string) SetOption {
	return func(s *Set) error {
		if name == "" {
			return errors.New("filter name must not be empty")
		}
		if _, ok := s.filters[name]; ok {
			return fmt.Errorf("filter %q declared twice", name)
		}
		kept := make([]string, 0, len(coords))
		seen := make(map[string]struct{}, len(coords))
		for _, c := range coords {
			if _, ok := s.index[c]; !ok {
				return fmt.Errorf("filter %q: coordinate %q not in set %q", name, c, s.name)
			}
			if _, dup := seen[c]; dup {
				return fmt.Errorf("filter %q: duplicate coordinate %q", name, c)
			}
			seen[c] = struct{}{}
			kept = append(kept, c)
		}
		s.filters[name] = kept
		return nil
	}
}

// NewSet builds an immutable Set from ordered coordinate labels.
func NewSet(name string, coords []string, opts ...SetOption) (*Set, error) {
	if name == "" {
		return nil, errors.New("set name must not be empty")
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("set %q: at least one coordinate required", name)
	}
	s := &Set{
		name:    name,
		coords:  append([]string(nil), coords...),
		index:   make(map[string]int, len(coords)),
		filters: make(map[string][]string),
	}
	for i, c := range coords {
		if c == "" {
			return nil, fmt.Errorf("set %q: empty coordinate at position %d", name, i)
		}
		if _, dup := s.index[c]; dup {
			return nil, fmt.Errorf("set %q: duplicate coordinate %q", name, c)
		}
		s.index[c] = i
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("set %q: %w", name, err)
		}
	}
	return s, nil
}

// MustNewSet is NewSet, panicking on error. For tests and static definitions.
func MustNewSet(name string, coords []string, opts ...SetOption) *Set {
	s, err := NewSet(name, coords, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the set name.
func (s *Set) Name() string { return s.name }

// Len returns the number of coordinates.
func (s *Set) Len() int { return len(s.coords) }

// Role returns the set role.
func (s *Set) Role() Role { return s.role }

// Coords returns a copy of the ordered coordinate labels.
func (s *Set) Coords() []string { return append([]string(nil), s.coords...) }

// Coord returns the i-th coordinate label.
func (s *Set) Coord(i int) string { return s.coords[i] }

// Index returns the position of a coordinate label.
func (s *Set) Index(label string) (int, bool) {
	i, ok := s.index[label]
	return i, ok
}

// Filter returns the coordinates selected by a named filter.
func (s *Set) Filter(name string) ([]string, bool) {
	f, ok := s.filters[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), f...), true
}

// FilterNames returns the declared filter names, sorted.
func (s *Set) FilterNames() []string {
	return utils.SortedKeys(s.filters)
}
