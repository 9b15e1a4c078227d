// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/qppath/qppath/internal/geo"
	"github.com/qppath/qppath/internal/model"
	"github.com/qppath/qppath/pkg/core"
	"gorm.io/datatypes"
)

func toJSON(v any, empty string) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return datatypes.JSON(empty), nil
	}
	return datatypes.JSON(data), nil
}

// CycleToModel converts a core.CycleRecord to a GORM model.PlanningCycle.
// Corridor intervals become child CorridorStation rows.
func CycleToModel(r core.CycleRecord) (model.PlanningCycle, error) {
	boundary, err := toJSON(r.EgoBoundary, "{}")
	if err != nil {
		return model.PlanningCycle{}, fmt.Errorf("failed to encode ego boundary: %w", err)
	}
	path, err := toJSON(r.Points, "[]")
	if err != nil {
		return model.PlanningCycle{}, fmt.Errorf("failed to encode path: %w", err)
	}

	stations := make([]model.CorridorStation, len(r.Corridor.Intervals))
	for i, iv := range r.Corridor.Intervals {
		stations[i] = model.CorridorStation{
			Index:   i,
			S:       r.Corridor.StationS(i),
			Lower:   iv.Lower,
			Upper:   iv.Upper,
			Crossed: iv.Crossed(),
		}
	}

	return model.PlanningCycle{
		Cycle:            r.Cycle,
		Time:             r.Time,
		Result:           string(r.Result),
		ObstacleCount:    r.ObstacleCount,
		CrossedStations:  len(r.Corridor.CrossedStations()),
		SolverDurationMs: float64(r.SolverDuration.Microseconds()) / 1000,
		EgoPosition:      geo.Point(r.Vehicle.Position()),
		EgoHeading:       r.Vehicle.Heading,
		EgoKappa:         r.Vehicle.Kappa,
		EgoSpeed:         r.Vehicle.Speed,
		EgoLength:        r.Vehicle.Length,
		EgoWidth:         r.Vehicle.Width,
		EgoS:             r.EgoPoint.S,
		EgoL:             r.EgoPoint.L,
		EgoDL:            r.EgoPoint.DL,
		EgoDDL:           r.EgoPoint.DDL,
		EgoBoundary:      boundary,
		StartS:           r.Corridor.StartS,
		Spacing:          r.Corridor.Spacing,
		Stations:         stations,
		Path:             path,
	}, nil
}
