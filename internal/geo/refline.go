package geo

import (
	"errors"
	"fmt"
	"math"
	"slices"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/qppath/qppath/pkg/core"
)

var (
	// ErrDegenerateLine is returned when a reference line has fewer than two distinct vertices.
	ErrDegenerateLine = errors.New("reference line needs at least two distinct vertices")
	// ErrNoWidths is returned when a reference line is built without a width profile.
	ErrNoWidths = errors.New("reference line needs at least one width sample")
)

// WidthSample gives lane and road half-widths at arc length S.
type WidthSample struct {
	S         float64 `json:"s"`
	LaneLeft  float64 `json:"laneLeft"`
	LaneRight float64 `json:"laneRight"`
	RoadLeft  float64 `json:"roadLeft"`
	RoadRight float64 `json:"roadRight"`
}

// ReferenceLine is a planar polyline parameterized by arc length with a
// lateral width profile. It is immutable once built and safe for concurrent
// readers.
type ReferenceLine struct {
	line    geom.LineString
	points  []core.Position2D
	s       []float64 // arc length at each vertex
	heading []float64 // per segment
	kappa   []float64 // per vertex
	widths  []WidthSample
}

// NewReferenceLine builds a reference line from ls. Consecutive duplicate
// vertices are dropped. Widths are interpolated linearly in s and held
// constant beyond the first and last sample.
func NewReferenceLine(ls geom.LineString, widths []WidthSample) (*ReferenceLine, error) {
	if len(widths) == 0 {
		return nil, ErrNoWidths
	}
	for i, w := range widths {
		if w.LaneLeft < 0 || w.LaneRight < 0 || w.RoadLeft < 0 || w.RoadRight < 0 {
			return nil, fmt.Errorf("width sample %d at s=%v: negative half-width", i, w.S)
		}
	}

	var points []core.Position2D
	for _, p := range Positions(ls) {
		if n := len(points); n > 0 && points[n-1] == p {
			continue
		}
		points = append(points, p)
	}
	if len(points) < 2 {
		return nil, ErrDegenerateLine
	}

	r := &ReferenceLine{
		line:    ls,
		points:  points,
		s:       make([]float64, len(points)),
		heading: make([]float64, len(points)-1),
		kappa:   make([]float64, len(points)),
		widths:  slices.Clone(widths),
	}
	slices.SortStableFunc(r.widths, func(a, b WidthSample) int {
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		}
		return 0
	})

	for j := range r.heading {
		dx, dy := points[j+1].X-points[j].X, points[j+1].Y-points[j].Y
		r.heading[j] = math.Atan2(dy, dx)
		r.s[j+1] = r.s[j] + math.Hypot(dx, dy)
	}
	// discrete curvature: turning angle over the mean adjacent segment length
	for j := 1; j < len(points)-1; j++ {
		turn := NormalizeAngle(r.heading[j] - r.heading[j-1])
		r.kappa[j] = turn / ((r.s[j+1] - r.s[j-1]) / 2)
	}
	if len(points) > 2 {
		r.kappa[0] = r.kappa[1]
		r.kappa[len(points)-1] = r.kappa[len(points)-2]
	}
	return r, nil
}

// Line returns the underlying line string.
func (r *ReferenceLine) Line() geom.LineString {
	return r.line
}

// Length returns the total arc length.
func (r *ReferenceLine) Length() float64 {
	return r.s[len(r.s)-1]
}

// LaneWidth returns the lane half-widths at s.
func (r *ReferenceLine) LaneWidth(s float64) (left, right float64) {
	w := r.widthAt(s)
	return w.LaneLeft, w.LaneRight
}

// RoadWidth returns the road half-widths at s.
func (r *ReferenceLine) RoadWidth(s float64) (left, right float64) {
	w := r.widthAt(s)
	return w.RoadLeft, w.RoadRight
}

func (r *ReferenceLine) widthAt(s float64) WidthSample {
	ws := r.widths
	if s <= ws[0].S {
		return ws[0]
	}
	if s >= ws[len(ws)-1].S {
		return ws[len(ws)-1]
	}
	i, _ := slices.BinarySearchFunc(ws, s, func(w WidthSample, s float64) int {
		switch {
		case w.S < s:
			return -1
		case w.S > s:
			return 1
		}
		return 0
	})
	if ws[i].S == s {
		return ws[i]
	}
	a, b := ws[i-1], ws[i]
	t := (s - a.S) / (b.S - a.S)
	lerp := func(x, y float64) float64 { return x + t*(y-x) }
	return WidthSample{
		S:         s,
		LaneLeft:  lerp(a.LaneLeft, b.LaneLeft),
		LaneRight: lerp(a.LaneRight, b.LaneRight),
		RoadLeft:  lerp(a.RoadLeft, b.RoadLeft),
		RoadRight: lerp(a.RoadRight, b.RoadRight),
	}
}

// projection is a world point expressed against one segment of the line.
type projection struct {
	seg int
	t   float64 // position along the segment, [0,1] except past the ends
	s   float64
	l   float64
}

// project finds the nearest segment to p. Points before the first vertex or
// past the last are extrapolated along the end segments.
func (r *ReferenceLine) project(p core.Position2D) projection {
	best := projection{}
	bestDist := math.Inf(1)
	last := len(r.heading) - 1
	for j := 0; j <= last; j++ {
		a, b := r.points[j], r.points[j+1]
		dx, dy := b.X-a.X, b.Y-a.Y
		segLen := r.s[j+1] - r.s[j]
		t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (segLen * segLen)
		tc := min(max(t, 0), 1)
		cx, cy := a.X+tc*dx-p.X, a.Y+tc*dy-p.Y
		dist := cx*cx + cy*cy
		if dist >= bestDist {
			continue
		}
		bestDist = dist
		if (j == 0 && t < 0) || (j == last && t > 1) {
			tc = t
		}
		best = projection{
			seg: j,
			t:   tc,
			s:   r.s[j] + tc*segLen,
			l:   (dx*(p.Y-a.Y) - dy*(p.X-a.X)) / segLen,
		}
	}
	return best
}

// curvatureAt interpolates vertex curvature inside a segment.
func (r *ReferenceLine) curvatureAt(pr projection) float64 {
	t := min(max(pr.t, 0), 1)
	return r.kappa[pr.seg] + t*(r.kappa[pr.seg+1]-r.kappa[pr.seg])
}

// FrenetPoint converts the vehicle pose into path-relative coordinates.
// The reference curvature derivative is taken as zero.
func (r *ReferenceLine) FrenetPoint(v core.VehicleState) core.FrenetPoint {
	pr := r.project(v.Position())
	kr := r.curvatureAt(pr)
	dTheta := NormalizeAngle(v.Heading - r.heading[pr.seg])
	tan, cos := math.Tan(dTheta), math.Cos(dTheta)
	oneMinus := 1 - kr*pr.l

	dl := oneMinus * tan
	ddl := -kr*dl*tan + oneMinus/(cos*cos)*(v.Kappa*oneMinus/cos-kr)
	return core.FrenetPoint{S: pr.s, L: pr.l, DL: dl, DDL: ddl}
}

// SLBoundary returns the path-relative bounding rectangle of box.
func (r *ReferenceLine) SLBoundary(box core.Box) core.SLBoundary {
	out := core.SLBoundary{
		StartS: math.Inf(1), EndS: math.Inf(-1),
		StartL: math.Inf(1), EndL: math.Inf(-1),
	}
	for _, c := range box.Corners() {
		pr := r.project(c)
		out.StartS = min(out.StartS, pr.s)
		out.EndS = max(out.EndS, pr.s)
		out.StartL = min(out.StartL, pr.l)
		out.EndL = max(out.EndL, pr.l)
	}
	return out
}

// Cartesian maps a path-relative point back to world coordinates.
func (r *ReferenceLine) Cartesian(s, l float64) (x, y float64) {
	j, _ := slices.BinarySearch(r.s, s)
	j = min(max(j-1, 0), len(r.heading)-1)
	a := r.points[j]
	theta := r.heading[j]
	ds := s - r.s[j]
	sin, cos := math.Sincos(theta)
	return a.X + ds*cos - l*sin, a.Y + ds*sin + l*cos
}

// NormalizeAngle wraps a to (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
