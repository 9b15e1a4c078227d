package corridor

import (
	"math"

	"github.com/qppath/qppath/pkg/core"
)

// Bounds is an owned interval buffer indexed by station.
// All range helpers take half-open [lo, hi) index pairs.
type Bounds []core.Interval

// NewBounds allocates a buffer of n zero intervals.
func NewBounds(n int) Bounds {
	return make(Bounds, n)
}

// MaxLower returns the largest lower bound in [lo, hi).
func (b Bounds) MaxLower(lo, hi int) float64 {
	out := math.Inf(-1)
	for _, iv := range b[lo:hi] {
		out = max(out, iv.Lower)
	}
	return out
}

// MinUpper returns the smallest upper bound in [lo, hi).
func (b Bounds) MinUpper(lo, hi int) float64 {
	out := math.Inf(1)
	for _, iv := range b[lo:hi] {
		out = min(out, iv.Upper)
	}
	return out
}

// Tightest returns the intersection of every interval in [lo, hi).
func (b Bounds) Tightest(lo, hi int) core.Interval {
	return core.Interval{Lower: b.MaxLower(lo, hi), Upper: b.MinUpper(lo, hi)}
}

// FillRange overwrites every interval in [lo, hi).
func (b Bounds) FillRange(lo, hi int, iv core.Interval) {
	for i := lo; i < hi; i++ {
		b[i] = iv
	}
}

// FillLower overwrites the lower bound of every interval in [lo, hi).
func (b Bounds) FillLower(lo, hi int, lower float64) {
	for i := lo; i < hi; i++ {
		b[i].Lower = lower
	}
}

// FillUpper overwrites the upper bound of every interval in [lo, hi).
func (b Bounds) FillUpper(lo, hi int, upper float64) {
	for i := lo; i < hi; i++ {
		b[i].Upper = upper
	}
}
