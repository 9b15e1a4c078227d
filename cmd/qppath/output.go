package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/qppath/qppath/internal/planner"
	"github.com/qppath/qppath/pkg/core"
)

const (
	outputJSON  = "json"
	outputTable = "table"
)

// pathPoint is one printed path sample.
type pathPoint struct {
	S   float64 `json:"s"`
	L   float64 `json:"l"`
	DL  float64 `json:"dl"`
	DDL float64 `json:"ddl"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

// stationRow is one printed corridor station.
type stationRow struct {
	Index   int     `json:"index"`
	S       float64 `json:"s"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Crossed bool    `json:"crossed,omitempty"`
}

func pathPoints(p *planner.Path) []pathPoint {
	world := p.Cartesian()
	out := make([]pathPoint, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pathPoint{S: pt.S, L: pt.L, DL: pt.DL, DDL: pt.DDL, X: world[i].X, Y: world[i].Y}
	}
	return out
}

func stationRows(c core.Corridor) []stationRow {
	out := make([]stationRow, c.Len())
	for i, iv := range c.Intervals {
		out[i] = stationRow{Index: i, S: c.StationS(i), Lower: iv.Lower, Upper: iv.Upper, Crossed: iv.Crossed()}
	}
	return out
}

func writePath(w io.Writer, format string, p *planner.Path) error {
	points := pathPoints(p)
	if format == outputJSON {
		return writeJSON(w, points)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "s\tl\tdl\tddl\tx\ty\t")
	for _, pt := range points {
		fmt.Fprintf(tw, "%.3f\t%.3f\t%.4f\t%.4f\t%.3f\t%.3f\t\n", pt.S, pt.L, pt.DL, pt.DDL, pt.X, pt.Y)
	}
	return tw.Flush()
}

func writeCorridor(w io.Writer, format string, c core.Corridor) error {
	rows := stationRows(c)
	if format == outputJSON {
		return writeJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\ts\tlower\tupper\t\t")
	for _, r := range rows {
		mark := ""
		if r.Crossed {
			mark = "crossed"
		}
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%s\t\n", r.Index, r.S, r.Lower, r.Upper, mark)
	}
	return tw.Flush()
}

// cycleRow summarizes one recorded cycle.
type cycleRow struct {
	Cycle     uint64    `json:"cycle"`
	Time      time.Time `json:"time"`
	Result    string    `json:"result"`
	Stations  int       `json:"stations"`
	Crossed   int       `json:"crossed"`
	Obstacles int       `json:"obstacles"`
	SolverMs  float64   `json:"solverMs"`
	EgoS      float64   `json:"egoS"`
	EgoL      float64   `json:"egoL"`
}

func cycleRows(records []core.CycleRecord) []cycleRow {
	out := make([]cycleRow, len(records))
	for i, r := range records {
		out[i] = cycleRow{
			Cycle:     r.Cycle,
			Time:      r.Time,
			Result:    string(r.Result),
			Stations:  r.Corridor.Len(),
			Crossed:   len(r.Corridor.CrossedStations()),
			Obstacles: r.ObstacleCount,
			SolverMs:  float64(r.SolverDuration) / float64(time.Millisecond),
			EgoS:      r.EgoPoint.S,
			EgoL:      r.EgoPoint.L,
		}
	}
	return out
}

func writeCycles(w io.Writer, format string, records []core.CycleRecord) error {
	rows := cycleRows(records)
	if format == outputJSON {
		return writeJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "cycle\ttime\tresult\tstations\tcrossed\tobstacles\tsolver ms\tego s\tego l")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%.3f\t%.3f\t%.3f\n",
			r.Cycle, r.Time.UTC().Format(time.RFC3339), r.Result,
			r.Stations, r.Crossed, r.Obstacles, r.SolverMs, r.EgoS, r.EgoL)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
