package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&PlanningCycle{},
	&CorridorStation{},
}

// PlanningCycle is one finished planning cycle.
type PlanningCycle struct {
	ID    uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Cycle uint64    `json:"cycle" gorm:"index:idx_cycle"`
	Time  time.Time `json:"time" gorm:"index:idx_cycle_time"`

	Result           string  `json:"result" gorm:"size:32;index:idx_cycle_result"`
	ObstacleCount    int     `json:"obstacleCount"`
	CrossedStations  int     `json:"crossedStations"`
	SolverDurationMs float64 `json:"solverDurationMs"`

	// ego
	EgoPosition geom.Point     `json:"egoPosition"`
	EgoHeading  float64        `json:"egoHeading"`
	EgoKappa    float64        `json:"egoKappa"`
	EgoSpeed    float64        `json:"egoSpeed"`
	EgoLength   float64        `json:"egoLength"`
	EgoWidth    float64        `json:"egoWidth"`
	EgoS        float64        `json:"egoS"`
	EgoL        float64        `json:"egoL"`
	EgoDL       float64        `json:"egoDL"`
	EgoDDL      float64        `json:"egoDDL"`
	EgoBoundary datatypes.JSON `json:"egoBoundary"`

	// corridor
	StartS   float64           `json:"startS"`
	Spacing  float64           `json:"spacing"`
	Stations []CorridorStation `json:"stations" gorm:"foreignKey:PlanningCycleID;constraint:OnDelete:CASCADE"`

	// output path, []core.FrenetPoint
	Path datatypes.JSON `json:"path"`
}

func (*PlanningCycle) TableName() string {
	return "planning_cycles"
}

// CorridorStation is the admissible lateral interval at one station of a cycle.
type CorridorStation struct {
	ID              uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	PlanningCycleID uint    `json:"planningCycleId" gorm:"index:idx_station_cycle"`
	Index           int     `json:"index"`
	S               float64 `json:"s"`
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Crossed         bool    `json:"crossed"`
}

func (*CorridorStation) TableName() string {
	return "corridor_stations"
}
