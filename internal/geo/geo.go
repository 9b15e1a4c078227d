package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/qppath/qppath/pkg/core"
	"github.com/wroge/wgs84"
)

// Reference lines are planar. Scenarios given in WGS84 lon/lat are projected
// once on load, by default to web mercator (EPSG:3857), and everything
// downstream works in meters.

// DefaultEPSG is the planar CRS used when none is configured.
const DefaultEPSG = 3857

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseLonLat parses a string in the format "long,lat" or "long,lat,elev".
// The elevation, if present, is validated and discarded.
func ParseLonLat(coords string) (lon, lat float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, ErrInvalidCoordinates
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, ErrInvalidCoordinates
	}
	if len(parts) == 3 {
		if _, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err != nil {
			return 0, 0, ErrInvalidCoordinates
		}
	}
	return lon, lat, nil
}

// ProjectLonLat transforms a WGS84 longitude/latitude into the planar CRS
// identified by epsg. Zero selects DefaultEPSG.
func ProjectLonLat(lon, lat float64, epsg int) (core.Position2D, error) {
	if epsg == 0 {
		epsg = DefaultEPSG
	}
	if !finite(lon) || !finite(lat) || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, epsg)
	x, y, _ := f(lon, lat, 0)
	if !finite(x) || !finite(y) {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	return core.Position2D{X: x, Y: y}, nil
}

// Point converts a planar position into a geom.Point for storage.
func Point(p core.Position2D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
