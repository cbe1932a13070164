package projectile

import "sort"

// Key is one point of a Curve.
type Key struct {
	Time  float64 `yaml:"time"`
	Value float64 `yaml:"value"`
}

// Curve is a piecewise linear function over normalized distance. Values
// outside the key range hold the nearest end value.
type Curve []Key

// LinearCurve maps 0 to start and 1 to end.
func LinearCurve(start, end float64) Curve {
	return Curve{{Time: 0, Value: start}, {Time: 1, Value: end}}
}

// Evaluate returns the curve value at t. An empty curve evaluates to 1.
func (c Curve) Evaluate(t float64) float64 {
	switch len(c) {
	case 0:
		return 1
	case 1:
		return c[0].Value
	}
	if t <= c[0].Time {
		return c[0].Value
	}
	last := c[len(c)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(c), func(i int) bool { return c[i].Time >= t })
	a, b := c[i-1], c[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.Value
	}
	return a.Value + (b.Value-a.Value)*(t-a.Time)/span
}

// Sorted returns a copy of the curve ordered by time.
func (c Curve) Sorted() Curve {
	out := make(Curve, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}
