// Package tide holds the tide-level data model: readings, the immutable
// series handle, threshold classification and the calendar aggregations
// built on top of them.
package tide

import (
	"sort"
	"time"
)

// Reading is a single water level observation in centimetres
type Reading struct {
	Time  time.Time `json:"time"`
	Level float64   `json:"level"`
}

// Series is an immutable, time-ordered collection of readings. It is built
// once by a loader and then shared read-only; every method returns either a
// copy or a new Series.
type Series struct {
	readings []Reading
}

// NewSeries copies readings and orders them by time. Readings with equal
// timestamps keep their input order.
func NewSeries(readings []Reading) Series {
	r := make([]Reading, len(readings))
	copy(r, readings)
	sort.SliceStable(r, func(i, j int) bool {
		return r[i].Time.Before(r[j].Time)
	})
	return Series{readings: r}
}

func (s Series) Len() int { return len(s.readings) }

// At returns the i'th reading in time order
func (s Series) At(i int) Reading { return s.readings[i] }

// Readings returns a copy of the underlying readings
func (s Series) Readings() []Reading {
	r := make([]Reading, len(s.readings))
	copy(r, s.readings)
	return r
}

// First returns the earliest reading; ok is false on an empty series
func (s Series) First() (Reading, bool) {
	if len(s.readings) == 0 {
		return Reading{}, false
	}
	return s.readings[0], true
}

// Last returns the latest reading; ok is false on an empty series
func (s Series) Last() (Reading, bool) {
	if len(s.readings) == 0 {
		return Reading{}, false
	}
	return s.readings[len(s.readings)-1], true
}

// Bounds returns the calendar dates of the first and last reading
func (s Series) Bounds() (first, last Date, ok bool) {
	f, ok := s.First()
	if !ok {
		return Date{}, Date{}, false
	}
	l, _ := s.Last()
	return DateOf(f.Time), DateOf(l.Time), true
}

// DistinctTimes counts distinct timestamps, stopping early once limit is
// reached when limit > 0.
func (s Series) DistinctTimes(limit int) int {
	n := 0
	for i, r := range s.readings {
		if i == 0 || !r.Time.Equal(s.readings[i-1].Time) {
			n++
			if limit > 0 && n >= limit {
				return n
			}
		}
	}
	return n
}

// Filter keeps readings whose calendar date lies in [start, end], ignoring
// time-of-day. A reversed interval yields an empty series and the receiver is
// never modified.
func (s Series) Filter(start, end Date) Series {
	if start.After(end) {
		return Series{}
	}

	var kept []Reading
	for _, r := range s.readings {
		d := DateOf(r.Time)
		if d.Before(start) || d.After(end) {
			continue
		}
		kept = append(kept, r)
	}
	return Series{readings: kept}
}
