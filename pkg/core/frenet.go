// pkg/core/frenet.go
package core

// FrenetPoint is a lateral state at a longitudinal position on a reference line.
// DL and DDL are the first and second derivatives of L with respect to S.
type FrenetPoint struct {
	S   float64 `json:"s"`
	L   float64 `json:"l"`
	DL  float64 `json:"dl"`
	DDL float64 `json:"ddl"`
}

// LateralState is the (l, dl, ddl) initial condition handed to the solver.
type LateralState [3]float64

// LateralState returns the point's lateral components.
func (p FrenetPoint) LateralState() LateralState {
	return LateralState{p.L, p.DL, p.DDL}
}

// SLBoundary is an axis-aligned rectangle in path-relative coordinates.
type SLBoundary struct {
	StartS float64 `json:"startS"`
	EndS   float64 `json:"endS"`
	StartL float64 `json:"startL"`
	EndL   float64 `json:"endL"`
}

// Width returns the lateral extent of the boundary.
func (b SLBoundary) Width() float64 {
	return b.EndL - b.StartL
}

// StraddlesReference reports whether the boundary occupies both sides of l=0.
func (b SLBoundary) StraddlesReference() bool {
	return b.StartL*b.EndL < 0
}
