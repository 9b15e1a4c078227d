// Package scenario loads a planning scenario from JSON: a reference line
// with its width profile, the ego vehicle and the obstacles around it.
//
// Positions are planar meters unless given as "lon,lat" strings, in which
// case they are projected into the scenario's EPSG (web mercator by default).
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/qppath/qppath/internal/geo"
	"github.com/qppath/qppath/internal/obstacle"
	"github.com/qppath/qppath/pkg/core"
)

var (
	// ErrNoReference is returned when neither or both reference formats are given.
	ErrNoReference = errors.New("scenario needs exactly one of reference.points or reference.lonLat")
	// ErrInvalidObstacle is returned for an obstacle without an ID or shape.
	ErrInvalidObstacle = errors.New("invalid obstacle")
)

// File is the on-disk scenario format.
type File struct {
	Name      string            `json:"name"`
	EPSG      int               `json:"epsg,omitempty"`
	Reference Reference         `json:"reference"`
	Widths    []geo.WidthSample `json:"widths"`
	Vehicle   Vehicle           `json:"vehicle"`
	Obstacles []Obstacle        `json:"obstacles"`
}

// Reference is the reference polyline, planar or geographic.
type Reference struct {
	Points json.RawMessage `json:"points,omitempty"` // [[x,y],...]
	LonLat []string        `json:"lonLat,omitempty"` // ["lon,lat",...]
}

// Vehicle is the ego state. LonLat, when set, replaces X and Y.
type Vehicle struct {
	core.VehicleState
	LonLat string `json:"lonLat,omitempty"`
}

// Obstacle is given either directly in SL or as a world box.
type Obstacle struct {
	ID       string           `json:"id"`
	Dynamic  bool             `json:"dynamic,omitempty"`
	Boundary *core.SLBoundary `json:"boundary,omitempty"`
	Box      *Box             `json:"box,omitempty"`
}

// Box is a world-frame obstacle footprint. LonLat, when set, replaces the center.
type Box struct {
	core.Box
	LonLat string `json:"lonLat,omitempty"`
}

// Scenario is a loaded, projected scenario ready for the planner.
type Scenario struct {
	Name      string
	Reference *geo.ReferenceLine
	Vehicle   core.VehicleState
	Obstacles *obstacle.Registry
}

// Load reads and builds the scenario at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse builds a scenario from its JSON encoding.
func Parse(data []byte) (*Scenario, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	return f.Build()
}

// Build projects the file's positions and assembles the scenario.
func (f *File) Build() (*Scenario, error) {
	ref, err := f.referenceLine()
	if err != nil {
		return nil, err
	}

	vehicle := f.Vehicle.VehicleState
	if f.Vehicle.LonLat != "" {
		pos, err := f.project(f.Vehicle.LonLat)
		if err != nil {
			return nil, fmt.Errorf("vehicle: %w", err)
		}
		vehicle.X, vehicle.Y = pos.X, pos.Y
	}

	registry := obstacle.NewRegistry()
	for i, o := range f.Obstacles {
		built, err := f.obstacle(o, ref)
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		if _, dup := registry.Get(built.ID); dup {
			return nil, fmt.Errorf("obstacle %d: %w: duplicate id %q", i, ErrInvalidObstacle, built.ID)
		}
		registry.Add(built)
	}

	return &Scenario{
		Name:      f.Name,
		Reference: ref,
		Vehicle:   vehicle,
		Obstacles: registry,
	}, nil
}

func (f *File) referenceLine() (*geo.ReferenceLine, error) {
	hasPoints := len(f.Reference.Points) > 0
	hasLonLat := len(f.Reference.LonLat) > 0
	if hasPoints == hasLonLat {
		return nil, ErrNoReference
	}

	if hasPoints {
		ls, err := geo.ParsePolyline(string(f.Reference.Points))
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		return geo.NewReferenceLine(ls, f.Widths)
	}

	points := make([]core.Position2D, len(f.Reference.LonLat))
	for i, coords := range f.Reference.LonLat {
		p, err := f.project(coords)
		if err != nil {
			return nil, fmt.Errorf("reference point %d: %w", i, err)
		}
		points[i] = p
	}
	ls, err := geo.LineString(points)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	return geo.NewReferenceLine(ls, f.Widths)
}

func (f *File) obstacle(o Obstacle, ref *geo.ReferenceLine) (core.Obstacle, error) {
	if o.ID == "" {
		return core.Obstacle{}, fmt.Errorf("%w: missing id", ErrInvalidObstacle)
	}
	if (o.Boundary == nil) == (o.Box == nil) {
		return core.Obstacle{}, fmt.Errorf("%w %q: needs exactly one of boundary or box", ErrInvalidObstacle, o.ID)
	}

	if o.Boundary != nil {
		return core.Obstacle{ID: o.ID, Static: !o.Dynamic, Boundary: *o.Boundary}, nil
	}

	box := o.Box.Box
	if o.Box.LonLat != "" {
		center, err := f.project(o.Box.LonLat)
		if err != nil {
			return core.Obstacle{}, fmt.Errorf("obstacle %q: %w", o.ID, err)
		}
		box.Center = center
	}
	if !(box.Length > 0) || !(box.Width > 0) {
		return core.Obstacle{}, fmt.Errorf("%w %q: box needs positive length and width", ErrInvalidObstacle, o.ID)
	}
	return obstacle.FromBox(o.ID, !o.Dynamic, box, ref), nil
}

func (f *File) project(coords string) (core.Position2D, error) {
	lon, lat, err := geo.ParseLonLat(coords)
	if err != nil {
		return core.Position2D{}, err
	}
	return geo.ProjectLonLat(lon, lat, f.EPSG)
}
