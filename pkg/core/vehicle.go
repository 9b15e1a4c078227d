// pkg/core/vehicle.go
package core

import "math"

// Position2D is a planar world position in meters.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an oriented rectangle in world coordinates centred on Center.
type Box struct {
	Center  Position2D `json:"center"`
	Heading float64    `json:"heading"`
	Length  float64    `json:"length"`
	Width   float64    `json:"width"`
}

// Corners returns the four corners counter-clockwise, starting front-left.
func (b Box) Corners() [4]Position2D {
	cos, sin := math.Cos(b.Heading), math.Sin(b.Heading)
	hl, hw := b.Length/2, b.Width/2
	corner := func(dx, dy float64) Position2D {
		return Position2D{
			X: b.Center.X + dx*cos - dy*sin,
			Y: b.Center.Y + dx*sin + dy*cos,
		}
	}
	return [4]Position2D{
		corner(hl, hw),
		corner(-hl, hw),
		corner(-hl, -hw),
		corner(hl, -hw),
	}
}

// VehicleState is the ego pose and motion at the start of a planning cycle.
type VehicleState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Kappa   float64 `json:"kappa"`
	Speed   float64 `json:"speed"`
	Length  float64 `json:"length"`
	Width   float64 `json:"width"`
}

// Position returns the vehicle's planar position.
func (v VehicleState) Position() Position2D {
	return Position2D{X: v.X, Y: v.Y}
}

// Footprint returns the world box occupied by the vehicle body.
func (v VehicleState) Footprint() Box {
	return Box{
		Center:  v.Position(),
		Heading: v.Heading,
		Length:  v.Length,
		Width:   v.Width,
	}
}
