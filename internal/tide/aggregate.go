package tide

import (
	"fmt"
	"math"
	"sort"
)

// ClassifiedReading is a reading tagged with its category
type ClassifiedReading struct {
	Reading
	Category Category `json:"category"`
}

func (c ClassifiedReading) Day() Date       { return DateOf(c.Time) }
func (c ClassifiedReading) Class() Category { return c.Category }

// DailyAggregate is the maximum level of one calendar day and the category
// of that maximum
type DailyAggregate struct {
	Date     Date     `json:"date"`
	MaxLevel float64  `json:"max_level"`
	Category Category `json:"category"`
}

func (d DailyAggregate) Day() Date       { return d.Date }
func (d DailyAggregate) Class() Category { return d.Category }

// Categorized is anything that can be bucketed by calendar period and counted
// by category. Both ClassifiedReading and DailyAggregate qualify.
type Categorized interface {
	Day() Date
	Class() Category
}

// ClassifyAll tags every reading in s with its category
func ClassifyAll(s Series) []ClassifiedReading {
	out := make([]ClassifiedReading, s.Len())
	for i := range out {
		r := s.At(i)
		out[i] = ClassifiedReading{Reading: r, Category: Classify(r.Level)}
	}
	return out
}

// DailyMax reduces s to one aggregate per calendar date present, ordered by
// date. The category is recomputed from the daily maximum, so a day whose
// readings cross both sustained and exceptional levels is exceptional only.
// Days with no readings are not filled in.
func DailyMax(s Series) []DailyAggregate {
	maxByDay := make(map[Date]float64)
	for i := 0; i < s.Len(); i++ {
		r := s.At(i)
		d := DateOf(r.Time)
		if cur, ok := maxByDay[d]; !ok || r.Level > cur || math.IsNaN(cur) {
			maxByDay[d] = r.Level
		}
	}

	out := make([]DailyAggregate, 0, len(maxByDay))
	for d, level := range maxByDay {
		out = append(out, DailyAggregate{Date: d, MaxLevel: level, Category: Classify(level)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Period selects how Summarize groups entries
type Period int

const (
	// ByMonth groups on month of year, merging the same month across years
	ByMonth Period = iota
	// ByYear groups on calendar year
	ByYear
)

// ParsePeriod accepts "month" or "year"
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "month":
		return ByMonth, nil
	case "year":
		return ByYear, nil
	}
	return 0, fmt.Errorf("unknown period %q: use month or year", s)
}

func (p Period) String() string {
	if p == ByYear {
		return "year"
	}
	return "month"
}

// Counts tallies entries per non-normal category
type Counts struct {
	Sustained     int `json:"sustained"`
	VerySustained int `json:"very_sustained"`
	Exceptional   int `json:"exceptional"`
}

func (c *Counts) add(cat Category) {
	switch cat {
	case Sustained:
		c.Sustained++
	case VerySustained:
		c.VerySustained++
	case Exceptional:
		c.Exceptional++
	}
}

// PeriodSummary holds the category counts for one month (1-12) or one year
type PeriodSummary struct {
	Key int `json:"key"`
	Counts
}

// Summarize groups items by the requested period and counts each category.
// Only periods present in items are returned, sorted by key. Feeding it
// ClassifiedReadings counts readings; feeding it DailyAggregates counts days.
func Summarize[T Categorized](items []T, by Period) []PeriodSummary {
	byKey := make(map[int]*Counts)
	for _, it := range items {
		d := it.Day()
		key := int(d.Month)
		if by == ByYear {
			key = d.Year
		}
		c, ok := byKey[key]
		if !ok {
			c = &Counts{}
			byKey[key] = c
		}
		c.add(it.Class())
	}

	out := make([]PeriodSummary, 0, len(byKey))
	for k, c := range byKey {
		out = append(out, PeriodSummary{Key: k, Counts: *c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Totals counts every item by category without grouping
func Totals[T Categorized](items []T) Counts {
	var c Counts
	for _, it := range items {
		c.add(it.Class())
	}
	return c
}

// YearlyMean is the average daily maximum of one year
type YearlyMean struct {
	Year int     `json:"year"`
	Mean float64 `json:"mean"`
	Days int     `json:"days"`
}

// YearlyMeanAbove averages, per year, the daily maxima strictly above
// threshold. Years with no qualifying day are omitted.
func YearlyMeanAbove(days []DailyAggregate, threshold float64) []YearlyMean {
	type acc struct {
		sum float64
		n   int
	}
	byYear := make(map[int]*acc)
	for _, d := range days {
		if !(d.MaxLevel > threshold) {
			continue
		}
		a, ok := byYear[d.Date.Year]
		if !ok {
			a = &acc{}
			byYear[d.Date.Year] = a
		}
		a.sum += d.MaxLevel
		a.n++
	}

	out := make([]YearlyMean, 0, len(byYear))
	for y, a := range byYear {
		out = append(out, YearlyMean{Year: y, Mean: a.sum / float64(a.n), Days: a.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
