package forecast

import "time"

// Point is one forecast step. Lower and Upper bound the uncertainty interval.
type Point struct {
	Time       time.Time          `json:"time"`
	Predicted  float64            `json:"predicted"`
	Lower      float64            `json:"lower"`
	Upper      float64            `json:"upper"`
	Trend      float64            `json:"trend"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Result is an ordered forecast over history and horizon. The first
// HistoryLen points are in-sample.
type Result struct {
	Points     []Point `json:"points"`
	HistoryLen int     `json:"history_len"`
}

// Future returns only the out-of-sample points
func (r Result) Future() []Point {
	if r.HistoryLen >= len(r.Points) {
		return nil
	}
	return r.Points[r.HistoryLen:]
}

// Tail keeps the last n in-sample points plus every future point. A
// negative n keeps the whole result.
func (r Result) Tail(n int) Result {
	if n < 0 || n >= r.HistoryLen {
		return r
	}
	start := r.HistoryLen - n
	return Result{
		Points:     r.Points[start:],
		HistoryLen: n,
	}
}

// countHistory returns how many grid points lie at or before last
func countHistory(points []Point, last time.Time) int {
	n := 0
	for _, p := range points {
		if p.Time.After(last) {
			break
		}
		n++
	}
	return n
}
