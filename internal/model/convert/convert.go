package convert

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/qppath/qppath/internal/model"
	"github.com/qppath/qppath/pkg/core"
)

// ModelToCycle converts a stored model.PlanningCycle back to a core.CycleRecord.
// Stations are ordered by Index regardless of load order.
func ModelToCycle(m model.PlanningCycle) (core.CycleRecord, error) {
	r := core.CycleRecord{
		Cycle:          m.Cycle,
		Time:           m.Time,
		Result:         core.CycleResult(m.Result),
		ObstacleCount:  m.ObstacleCount,
		SolverDuration: time.Duration(m.SolverDurationMs * float64(time.Millisecond)),
		Vehicle: core.VehicleState{
			Heading: m.EgoHeading,
			Kappa:   m.EgoKappa,
			Speed:   m.EgoSpeed,
			Length:  m.EgoLength,
			Width:   m.EgoWidth,
		},
		EgoPoint: core.FrenetPoint{S: m.EgoS, L: m.EgoL, DL: m.EgoDL, DDL: m.EgoDDL},
		Corridor: core.Corridor{StartS: m.StartS, Spacing: m.Spacing},
	}
	if xy, ok := m.EgoPosition.XY(); ok {
		r.Vehicle.X, r.Vehicle.Y = xy.X, xy.Y
	}

	if len(m.EgoBoundary) > 0 {
		if err := json.Unmarshal(m.EgoBoundary, &r.EgoBoundary); err != nil {
			return core.CycleRecord{}, fmt.Errorf("failed to decode ego boundary: %w", err)
		}
	}
	if len(m.Path) > 0 {
		if err := json.Unmarshal(m.Path, &r.Points); err != nil {
			return core.CycleRecord{}, fmt.Errorf("failed to decode path: %w", err)
		}
		if len(r.Points) == 0 {
			r.Points = nil
		}
	}

	stations := slices.Clone(m.Stations)
	slices.SortFunc(stations, func(a, b model.CorridorStation) int {
		return a.Index - b.Index
	})
	if len(stations) > 0 {
		r.Corridor.Intervals = make([]core.Interval, len(stations))
		for i, st := range stations {
			r.Corridor.Intervals[i] = core.Interval{Lower: st.Lower, Upper: st.Upper}
		}
	}
	return r, nil
}
