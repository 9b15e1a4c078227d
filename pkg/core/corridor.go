// pkg/core/corridor.go
package core

// Interval is the admissible lateral range at one station, left positive.
// Lower <= Upper is not guaranteed.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Crossed reports whether the interval is empty.
func (i Interval) Crossed() bool {
	return i.Lower > i.Upper
}

// Corridor is the per-station lateral envelope along the reference line.
type Corridor struct {
	StartS    float64    `json:"startS"`
	Spacing   float64    `json:"spacing"`
	Intervals []Interval `json:"intervals"`
}

// Len returns the number of stations.
func (c Corridor) Len() int {
	return len(c.Intervals)
}

// StationS returns the arc length of station i.
func (c Corridor) StationS(i int) float64 {
	return c.StartS + float64(i)*c.Spacing
}

// LastS returns the arc length of the final station.
func (c Corridor) LastS() float64 {
	if len(c.Intervals) == 0 {
		return c.StartS
	}
	return c.StationS(len(c.Intervals) - 1)
}

// CrossedStations returns the indices of stations whose interval is empty.
func (c Corridor) CrossedStations() []int {
	var out []int
	for i, iv := range c.Intervals {
		if iv.Crossed() {
			out = append(out, i)
		}
	}
	return out
}
