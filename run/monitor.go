package run

import "math"

// Monitor decides whether a Gauss-Seidel pass moved the shared values of a
// coupling group by less than the tolerance. The first observation never
// converges, there is no previous pass to compare against.
type Monitor struct {
	norm      Norm
	tolerance float64
	passes    int
	prev      map[string][]float64
}

// NewMonitor returns a monitor using the given norm and tolerance.
func NewMonitor(norm Norm, tolerance float64) *Monitor {
	return &Monitor{norm: norm, tolerance: tolerance}
}

// Passes reports how many passes have been observed so far.
func (m *Monitor) Passes() int { return m.passes }

// Observe records one pass worth of shared values, keyed by table name, and
// reports the distance to the previous pass along with whether that distance
// is within tolerance.
func (m *Monitor) Observe(values map[string][]float64) (delta float64, converged bool) {
	m.passes++
	if m.prev == nil {
		m.prev = snapshotValues(values)
		return math.Inf(1), false
	}

	switch m.norm {
	case NormRelL2:
		delta = relL2(m.prev, values)
	default:
		delta = maxAbs(m.prev, values)
	}
	m.prev = snapshotValues(values)
	return delta, delta <= m.tolerance
}

func snapshotValues(values map[string][]float64) map[string][]float64 {
	out := make(map[string][]float64, len(values))
	for k, v := range values {
		cp := make([]float64, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// maxAbs is the largest elementwise change relative to the previous value.
// An entry that moves away from exactly zero counts as an infinite change.
func maxAbs(prev, curr map[string][]float64) float64 {
	var worst float64
	for key, c := range curr {
		p, ok := prev[key]
		if !ok || len(p) != len(c) {
			return math.Inf(1)
		}
		for i := range c {
			worst = math.Max(worst, relDelta(p[i], c[i]))
		}
	}
	return worst
}

func relDelta(p, c float64) float64 {
	if p == c {
		return 0
	}
	if p == 0 {
		return math.Inf(1)
	}
	return math.Abs(c-p) / math.Abs(p)
}

// relL2 is the l2 norm of the change between passes, relative to the l2 norm
// of the previous pass.
func relL2(prev, curr map[string][]float64) float64 {
	var diff, base float64
	for key, c := range curr {
		p, ok := prev[key]
		if !ok || len(p) != len(c) {
			return math.Inf(1)
		}
		for i := range c {
			d := c[i] - p[i]
			diff += d * d
			base += p[i] * p[i]
		}
	}
	if base == 0 {
		if diff == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Sqrt(diff) / math.Sqrt(base)
}
