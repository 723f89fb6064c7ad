package lunar

import (
	"testing"
	"time"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name              string
		time              time.Time
		expectedPhaseName string
		illuminationRange [2]float64 // min, max
		isWaxing          bool
		springTide        bool
	}{
		{
			// evening of the 12 November 2019 acqua granda, five hours
			// after the 13:34 UTC full moon
			name:              "Full Moon Nov 2019",
			time:              time.Date(2019, 11, 12, 18, 34, 0, 0, time.UTC),
			expectedPhaseName: "Full Moon",
			illuminationRange: [2]float64{0.97, 1.0},
			springTide:        true,
		},
		{
			// five hours after the 15:06 UTC new moon
			name:              "New Moon Nov 2019",
			time:              time.Date(2019, 11, 26, 20, 6, 0, 0, time.UTC),
			expectedPhaseName: "New Moon",
			illuminationRange: [2]float64{0.0, 0.03},
			isWaxing:          true,
			springTide:        true,
		},
		{
			name:              "First Quarter Jan 2023",
			time:              time.Date(2023, 1, 28, 15, 19, 0, 0, time.UTC),
			illuminationRange: [2]float64{0.45, 0.55},
			isWaxing:          true,
		},
		{
			name:              "Third Quarter Feb 2023",
			time:              time.Date(2023, 2, 13, 16, 1, 0, 0, time.UTC),
			illuminationRange: [2]float64{0.45, 0.55},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(tt.time)

			if tt.expectedPhaseName != "" && result.PhaseName != tt.expectedPhaseName {
				t.Errorf("PhaseName = %q, expected %q", result.PhaseName, tt.expectedPhaseName)
			}
			if result.Illumination < tt.illuminationRange[0] || result.Illumination > tt.illuminationRange[1] {
				t.Errorf("Illumination = %.3f, expected in range [%.2f, %.2f]",
					result.Illumination, tt.illuminationRange[0], tt.illuminationRange[1])
			}
			if result.IsWaxing != tt.isWaxing {
				t.Errorf("IsWaxing = %v, expected %v", result.IsWaxing, tt.isWaxing)
			}
			if result.SpringTide != tt.springTide {
				t.Errorf("SpringTide = %v, expected %v", result.SpringTide, tt.springTide)
			}
		})
	}
}

func TestIsSpringTide(t *testing.T) {
	tests := []struct {
		age  float64
		want bool
	}{
		{0, true},
		{1.9, true},
		{SynodicMonth - 1, true},
		{SynodicMonth / 2, true},
		{SynodicMonth/2 + 2.5, false},
		{7.4, false},
		{22.1, false},
	}
	for _, tt := range tests {
		if got := isSpringTide(tt.age); got != tt.want {
			t.Errorf("isSpringTide(%.2f) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestPhaseProgression(t *testing.T) {
	start := time.Date(2019, 11, 26, 15, 6, 0, 0, time.UTC)
	prevPhase := -1.0

	for day := 0; day < 29; day++ {
		result := Calculate(start.Add(time.Duration(day) * 24 * time.Hour))

		// allow for wrap-around near 1.0
		if prevPhase >= 0 && prevPhase < 0.9 && result.Phase < prevPhase-0.01 {
			t.Errorf("Day %d: phase decreased from %.3f to %.3f", day, prevPhase, result.Phase)
		}
		prevPhase = result.Phase
	}
}

func TestIlluminationRange(t *testing.T) {
	for year := 2015; year <= 2025; year++ {
		for month := 1; month <= 12; month++ {
			testTime := time.Date(year, time.Month(month), 15, 12, 0, 0, 0, time.UTC)
			result := Calculate(testTime)

			if result.Illumination < 0 || result.Illumination > 1 {
				t.Errorf("Illumination %.3f out of range [0, 1] for %v", result.Illumination, testTime)
			}
			if result.Phase < 0 || result.Phase >= 1 {
				t.Errorf("Phase %.3f out of range [0, 1) for %v", result.Phase, testTime)
			}
			if result.AgeDays < 0 || result.AgeDays >= SynodicMonth {
				t.Errorf("AgeDays %.3f out of range [0, %.3f) for %v", result.AgeDays, SynodicMonth, testTime)
			}
		}
	}
}

func TestLocalTimeMatchesUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	utc := time.Date(2019, 11, 12, 22, 0, 0, 0, time.UTC)
	if Calculate(utc) != Calculate(utc.In(loc)) {
		t.Error("phase depends on the time's location")
	}
}

func TestWaxingFlipsAtNewMoon(t *testing.T) {
	newMoon := time.Date(2019, 11, 26, 15, 6, 0, 0, time.UTC)

	before := Calculate(newMoon.Add(-6 * time.Hour))
	after := Calculate(newMoon.Add(6 * time.Hour))

	if before.IsWaxing {
		t.Errorf("6h before new moon: IsWaxing = true, elongation %.2f", before.Elongation)
	}
	if !after.IsWaxing {
		t.Errorf("6h after new moon: IsWaxing = false, elongation %.2f", after.Elongation)
	}
	for _, p := range []MoonPhase{before, after} {
		if p.PhaseName != "New Moon" || !p.SpringTide {
			t.Errorf("near new moon got %q, spring tide %v", p.PhaseName, p.SpringTide)
		}
	}
}
