// pkg/core/cycle.go
package core

import "time"

// CycleResult classifies how a planning cycle ended.
type CycleResult string

const (
	CycleOK                 CycleResult = "ok"
	CycleNotInitialized     CycleResult = "not_initialized"
	CycleOptimizationFailed CycleResult = "optimization_failed"
)

// CycleRecord is a diagnostic snapshot of one finished planning cycle.
// Records are written out by the recorder and never read back by the planner.
type CycleRecord struct {
	Cycle          uint64        `json:"cycle"`
	Time           time.Time     `json:"time"`
	Vehicle        VehicleState  `json:"vehicle"`
	EgoPoint       FrenetPoint   `json:"egoPoint"`
	EgoBoundary    SLBoundary    `json:"egoBoundary"`
	Corridor       Corridor      `json:"corridor"`
	ObstacleCount  int           `json:"obstacleCount"`
	SolverDuration time.Duration `json:"solverDuration"`
	Result         CycleResult   `json:"result"`
	Points         []FrenetPoint `json:"points,omitempty"`
}
