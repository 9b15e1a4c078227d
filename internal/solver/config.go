package solver

import (
	"fmt"
	"math"
)

// Config holds the cost weights and iteration limits.
type Config struct {
	LWeight       float64 `json:"lWeight"`
	DLWeight      float64 `json:"dlWeight"`
	DDLWeight     float64 `json:"ddlWeight"`
	DDDLWeight    float64 `json:"dddlWeight"`
	InitWeight    float64 `json:"initWeight"`
	MaxIterations int     `json:"maxIterations"`
	Tolerance     float64 `json:"tolerance"`
}

// DefaultConfig returns the weights used by the planner unless configured otherwise.
func DefaultConfig() Config {
	return Config{
		LWeight:       1,
		DLWeight:      100,
		DDLWeight:     500,
		DDDLWeight:    1000,
		InitWeight:    1000,
		MaxIterations: 5000,
		Tolerance:     1e-6,
	}
}

// Validate checks that the cost is strictly convex and the limits usable.
func (c Config) Validate() error {
	weights := []struct {
		name string
		w    float64
	}{
		{"lWeight", c.LWeight},
		{"dlWeight", c.DLWeight},
		{"ddlWeight", c.DDLWeight},
		{"dddlWeight", c.DDDLWeight},
		{"initWeight", c.InitWeight},
	}
	for _, w := range weights {
		if math.IsNaN(w.w) || math.IsInf(w.w, 0) || w.w < 0 {
			return fmt.Errorf("solver %s must be a non-negative number, got %v", w.name, w.w)
		}
	}
	// the offset term keeps H positive definite
	if c.LWeight <= 0 {
		return fmt.Errorf("solver lWeight must be positive, got %v", c.LWeight)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("solver maxIterations must be positive, got %d", c.MaxIterations)
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("solver tolerance must be positive, got %v", c.Tolerance)
	}
	return nil
}
