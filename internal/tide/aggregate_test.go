package tide

import (
	"math"
	"testing"
	"time"
)

func TestDailyMax(t *testing.T) {
	tests := []struct {
		name     string
		readings []Reading
		expected []DailyAggregate
	}{
		{
			name: "max decides the category",
			readings: []Reading{
				{Time: at(2020, 1, 1, 1), Level: 70},
				{Time: at(2020, 1, 1, 2), Level: 85},
				{Time: at(2020, 1, 1, 3), Level: 60},
			},
			expected: []DailyAggregate{
				{Date: Date{2020, 1, 1}, MaxLevel: 85, Category: Sustained},
			},
		},
		{
			name: "day crossing two thresholds is exceptional only",
			readings: []Reading{
				{Time: at(2019, 11, 12, 8), Level: 85},
				{Time: at(2019, 11, 12, 22), Level: 145},
			},
			expected: []DailyAggregate{
				{Date: Date{2019, 11, 12}, MaxLevel: 145, Category: Exceptional},
			},
		},
		{
			name: "gaps are not filled",
			readings: []Reading{
				{Time: at(2020, 2, 1, 0), Level: 10},
				{Time: at(2020, 2, 4, 0), Level: 120},
			},
			expected: []DailyAggregate{
				{Date: Date{2020, 2, 1}, MaxLevel: 10, Category: Normal},
				{Date: Date{2020, 2, 4}, MaxLevel: 120, Category: VerySustained},
			},
		},
		{
			name:     "empty series",
			readings: nil,
			expected: []DailyAggregate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DailyMax(NewSeries(tt.readings))
			if len(got) != len(tt.expected) {
				t.Fatalf("got %d aggregates, expected %d: %+v", len(got), len(tt.expected), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("aggregate %d = %+v, expected %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDailyMaxIsOrderedAndUnique(t *testing.T) {
	var readings []Reading
	start := at(2021, 1, 1, 0)
	for h := 0; h < 24*40; h++ {
		readings = append(readings, Reading{
			Time:  start.Add(time.Duration(h) * time.Hour),
			Level: 60 + 50*math.Sin(float64(h)/6),
		})
	}
	days := DailyMax(NewSeries(readings))
	if len(days) != 40 {
		t.Fatalf("expected 40 days, got %d", len(days))
	}
	for i := 1; i < len(days); i++ {
		if !days[i-1].Date.Before(days[i].Date) {
			t.Fatalf("days out of order at %d: %v then %v", i, days[i-1].Date, days[i].Date)
		}
	}
	for _, d := range days {
		if d.Category != Classify(d.MaxLevel) {
			t.Errorf("day %v category %v does not match max %v", d.Date, d.Category, d.MaxLevel)
		}
	}
}

func TestSummarize(t *testing.T) {
	readings := []Reading{
		{Time: at(2018, 10, 29, 12), Level: 156},
		{Time: at(2018, 10, 29, 13), Level: 120},
		{Time: at(2019, 10, 3, 6), Level: 90},
		{Time: at(2019, 11, 12, 22), Level: 187},
		{Time: at(2019, 11, 13, 10), Level: 30},
	}
	classified := ClassifyAll(NewSeries(readings))

	t.Run("by month merges years", func(t *testing.T) {
		got := Summarize(classified, ByMonth)
		expected := []PeriodSummary{
			{Key: 10, Counts: Counts{Sustained: 1, VerySustained: 1, Exceptional: 1}},
			{Key: 11, Counts: Counts{Exceptional: 1}},
		}
		assertSummaries(t, got, expected)
	})

	t.Run("by year", func(t *testing.T) {
		got := Summarize(classified, ByYear)
		expected := []PeriodSummary{
			{Key: 2018, Counts: Counts{VerySustained: 1, Exceptional: 1}},
			{Key: 2019, Counts: Counts{Sustained: 1, Exceptional: 1}},
		}
		assertSummaries(t, got, expected)
	})

	t.Run("daily aggregates count days", func(t *testing.T) {
		got := Summarize(DailyMax(NewSeries(readings)), ByYear)
		expected := []PeriodSummary{
			{Key: 2018, Counts: Counts{Exceptional: 1}},
			{Key: 2019, Counts: Counts{Sustained: 1, Exceptional: 1}},
		}
		assertSummaries(t, got, expected)
	})

	t.Run("empty input", func(t *testing.T) {
		got := Summarize([]ClassifiedReading{}, ByMonth)
		if len(got) != 0 {
			t.Errorf("expected no buckets, got %+v", got)
		}
	})
}

func TestSummarizeFullYearHasTwelveMonths(t *testing.T) {
	var readings []Reading
	for d := at(2022, 1, 1, 0); d.Year() == 2022; d = d.Add(24 * time.Hour) {
		readings = append(readings, Reading{Time: d, Level: 50})
	}
	got := Summarize(DailyMax(NewSeries(readings)), ByMonth)
	if len(got) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(got))
	}
	for i, s := range got {
		if s.Key != i+1 {
			t.Errorf("bucket %d has key %d", i, s.Key)
		}
	}
}

func TestMiddleYearMonthlySummary(t *testing.T) {
	tests := []struct {
		name      string
		firstYear int
		days      int
	}{
		{"common middle year", 2020, 365},
		{"leap middle year", 2019, 366},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// three years of hourly levels: a semidiurnal tide on top of a
			// fortnightly spring/neap swing
			var readings []Reading
			start := at(tt.firstYear, 1, 1, 0)
			end := at(tt.firstYear+3, 1, 1, 0)
			for ts := start; ts.Before(end); ts = ts.Add(time.Hour) {
				h := ts.Sub(start).Hours()
				level := 60 + 40*math.Sin(2*math.Pi*h/12.42) + 45*math.Sin(2*math.Pi*h/(24*14.77))
				readings = append(readings, Reading{Time: ts, Level: level})
			}

			year := tt.firstYear + 1
			filtered := NewSeries(readings).Filter(Date{year, 1, 1}, Date{year, 12, 31})
			daily := DailyMax(filtered)
			if len(daily) != tt.days {
				t.Fatalf("expected %d daily maxima, got %d", tt.days, len(daily))
			}
			for _, d := range daily {
				if d.Date.Year != year {
					t.Fatalf("day %s is outside %d", d.Date, year)
				}
			}

			got := Summarize(daily, ByMonth)
			if len(got) != 12 {
				t.Fatalf("expected 12 monthly buckets, got %d", len(got))
			}
			total := 0
			for i, s := range got {
				if s.Key != i+1 {
					t.Errorf("bucket %d has key %d", i, s.Key)
				}
				n := s.Counts.Sustained + s.Counts.VerySustained + s.Counts.Exceptional
				if n > 31 {
					t.Errorf("month %d counts %d days", s.Key, n)
				}
				total += n
			}
			if total == 0 || total > tt.days {
				t.Errorf("flagged days = %d, expected between 1 and %d", total, tt.days)
			}
		})
	}
}

func TestTotalsAndYearlyMean(t *testing.T) {
	days := []DailyAggregate{
		{Date: Date{2018, 10, 29}, MaxLevel: 156, Category: Exceptional},
		{Date: Date{2018, 11, 1}, MaxLevel: 80, Category: Sustained},
		{Date: Date{2018, 11, 2}, MaxLevel: 100, Category: Sustained},
		{Date: Date{2019, 1, 1}, MaxLevel: 40, Category: Normal},
	}

	totals := Totals(days)
	if totals != (Counts{Sustained: 2, Exceptional: 1}) {
		t.Errorf("Totals = %+v", totals)
	}

	means := YearlyMeanAbove(days, SustainedThreshold)
	if len(means) != 1 {
		t.Fatalf("expected one year above threshold, got %+v", means)
	}
	if means[0].Year != 2018 || means[0].Days != 2 || math.Abs(means[0].Mean-128) > 1e-9 {
		t.Errorf("YearlyMeanAbove = %+v", means[0])
	}
}

func assertSummaries(t *testing.T, got, expected []PeriodSummary) {
	t.Helper()
	if len(got) != len(expected) {
		t.Fatalf("got %d buckets, expected %d: %+v", len(got), len(expected), got)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("bucket %d = %+v, expected %+v", i, got[i], expected[i])
		}
	}
}
