package corridor

import (
	"math"

	"github.com/qppath/qppath/pkg/core"
)

// WidthOracle answers lane and road half-width queries along the reference line.
type WidthOracle interface {
	LaneWidth(s float64) (left, right float64)
	RoadWidth(s float64) (left, right float64)
}

// Params are the per-cycle sampling parameters.
type Params struct {
	Spacing       float64
	Length        float64
	LateralBuffer float64
}

// StationCount returns max(2, floor(length/spacing)).
func StationCount(length, spacing float64) int {
	if !(spacing > 0) {
		return 2
	}
	n := math.Floor(length / spacing)
	if !(n > 2) {
		return 2
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// ComputeBounds builds the corridor ahead of the ego. ego is the ego body
// projected onto the reference line and egoPoint its Frenet state; the
// first station sits at egoPoint.S.
func ComputeBounds(
	ego core.SLBoundary,
	egoPoint core.FrenetPoint,
	p Params,
	oracle WidthOracle,
	obstacles []core.Obstacle,
) core.Corridor {
	n := StationCount(p.Length, p.Spacing)
	startS := egoPoint.S
	bufferedWidth := ego.Width() + p.LateralBuffer

	bounds := NewBounds(n)
	for i := range bounds {
		bounds[i] = laneInterval(ego, startS+float64(i)*p.Spacing, oracle)
	}

	lastS := startS + float64(n-1)*p.Spacing
	index := func(s float64) int {
		i := math.Floor((s - startS) / p.Spacing)
		switch {
		case !(i > 0):
			return 0
		case i >= float64(n-1):
			return n - 1
		}
		return int(i)
	}

	for _, obstacle := range obstacles {
		if !obstacle.IsStatic() {
			continue
		}
		sl := obstacle.Footprint()
		if sl.EndS < startS || sl.StartS > lastS {
			continue
		}
		lo, hi := index(sl.StartS), index(sl.EndS)+1
		lower, upper := bounds.MaxLower(lo, hi), bounds.MinUpper(lo, hi)
		if sl.StartL > upper || sl.EndL < lower {
			continue
		}

		// beside the ego rather than ahead of it
		if sl.EndS < ego.EndS {
			if sl.StartL > ego.EndL {
				bounds.FillUpper(lo, hi, sl.StartL)
			} else {
				bounds.FillLower(lo, hi, sl.EndL)
			}
			continue
		}

		leftRemain := upper - sl.EndL
		rightRemain := sl.StartL - lower
		switch {
		case leftRemain > bufferedWidth:
			lower = max(lower, sl.EndL)
		case rightRemain > bufferedWidth:
			upper = min(upper, sl.StartL)
		case sl.StraddlesReference():
			// blocked on the reference line: left for the stop decision
			continue
		default:
			roadLeft, roadRight := oracle.RoadWidth(sl.StartS)
			if sl.StartL >= 0 {
				upper = sl.StartL
				lower = max(sl.StartL-bufferedWidth, -roadRight)
			} else {
				upper = min(sl.EndL+bufferedWidth, roadLeft)
				lower = sl.EndL
			}
		}
		bounds.FillRange(lo, hi, core.Interval{Lower: lower, Upper: upper})
	}

	return core.Corridor{StartS: startS, Spacing: p.Spacing, Intervals: bounds}
}

// laneInterval is the obstacle-free envelope at s. When the ego already
// extends past a lane edge the envelope widens to the ego extent, capped by
// the road edge. The left side wins if both edges are exceeded.
func laneInterval(ego core.SLBoundary, s float64, oracle WidthOracle) core.Interval {
	left, right := oracle.LaneWidth(s)
	offLeft := ego.EndL > left
	offRight := ego.StartL < -right
	if !offLeft && !offRight {
		return core.Interval{Lower: -right, Upper: left}
	}
	roadLeft, roadRight := oracle.RoadWidth(s)
	if offLeft {
		return core.Interval{Lower: -right, Upper: min(ego.EndL, roadLeft)}
	}
	return core.Interval{Lower: max(ego.StartL, -roadRight), Upper: left}
}
