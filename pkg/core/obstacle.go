// pkg/core/obstacle.go
package core

// Obstacle is a perceived object projected onto the reference line.
// Only static obstacles shape the corridor.
type Obstacle struct {
	ID       string     `json:"id"`
	Static   bool       `json:"static"`
	Boundary SLBoundary `json:"boundary"`
}

// IsStatic reports whether the obstacle is classified as non-moving this cycle.
func (o Obstacle) IsStatic() bool {
	return o.Static
}

// Footprint returns the obstacle's path-relative rectangle.
func (o Obstacle) Footprint() SLBoundary {
	return o.Boundary
}
