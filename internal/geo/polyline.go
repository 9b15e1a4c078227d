package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/qppath/qppath/pkg/core"
)

// ParsePolyline parses a JSON array of planar coordinates into a geom.LineString.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolyline(input string) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	points := make([]core.Position2D, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		points[i] = core.Position2D{X: coord[0], Y: coord[1]}
	}
	return LineString(points)
}

// LineString builds a 2D line string from planar positions.
func LineString(points []core.Position2D) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(points))
	}
	flat := make([]float64, 0, len(points)*2)
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return geom.LineString{}, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		flat = append(flat, p.X, p.Y)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY)), nil
}

// Positions flattens a line string back into planar positions.
func Positions(ls geom.LineString) []core.Position2D {
	seq := ls.Coordinates()
	out := make([]core.Position2D, seq.Length())
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = core.Position2D{X: xy.X, Y: xy.Y}
	}
	return out
}
