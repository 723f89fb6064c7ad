// Package lunar computes the moon phase for a moment in time. Daily
// tide charts use it to mark spring tides, when the sun and moon pull
// together and high water runs highest.
package lunar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// SynodicMonth is the average length of the lunar cycle in days
const SynodicMonth = 29.530588853

// SpringTideWindow is how many days either side of a new or full moon
// count as a spring tide
const SpringTideWindow = 2.0

// MoonPhase contains calculated moon phase information
type MoonPhase struct {
	Phase        float64 `json:"phase"`        // [0,1): 0=new, 0.5=full
	Elongation   float64 `json:"elongation"`   // Sun to Moon angle in degrees [0,360)
	Illumination float64 `json:"illumination"` // [0,1]
	AgeDays      float64 `json:"age_days"`     // days since new moon
	IsWaxing     bool    `json:"waxing"`
	PhaseName    string  `json:"name"`
	SpringTide   bool    `json:"spring_tide"`
}

// Calculate computes the moon phase for t
func Calculate(t time.Time) MoonPhase {
	T := julianCenturies(julian.TimeToJD(t.UTC()))

	elongation := normalizeAngle(moonEclipticLongitude(T) - sunEclipticLongitude(T))
	phase := elongation / 360.0
	illumination := (1 - math.Cos(degToRad(elongation))) / 2
	ageDays := phase * SynodicMonth
	isWaxing := elongation < 180

	return MoonPhase{
		Phase:        phase,
		Elongation:   elongation,
		Illumination: illumination,
		AgeDays:      ageDays,
		IsWaxing:     isWaxing,
		PhaseName:    phaseName(illumination, isWaxing),
		SpringTide:   isSpringTide(ageDays),
	}
}

// isSpringTide reports whether ageDays lies near syzygy
func isSpringTide(ageDays float64) bool {
	half := SynodicMonth / 2
	fromNew := math.Min(ageDays, SynodicMonth-ageDays)
	fromFull := math.Abs(ageDays - half)
	return fromNew <= SpringTideWindow || fromFull <= SpringTideWindow
}

func phaseName(illumination float64, isWaxing bool) string {
	switch {
	case illumination < 0.01:
		return "New Moon"
	case illumination > 0.99:
		return "Full Moon"
	case illumination >= 0.49 && illumination <= 0.51:
		if isWaxing {
			return "First Quarter"
		}
		return "Third Quarter"
	case illumination < 0.50:
		if isWaxing {
			return "Waxing Crescent"
		}
		return "Waning Crescent"
	default:
		if isWaxing {
			return "Waxing Gibbous"
		}
		return "Waning Gibbous"
	}
}

// julianCenturies returns Julian centuries since J2000.0
func julianCenturies(jd float64) float64 {
	return (jd - 2451545.0) / 36525.0
}

func normalizeAngle(angle float64) float64 {
	angle = math.Mod(angle, 360)
	if angle < 0 {
		angle += 360
	}
	return angle
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// sunMeanAnomaly in degrees
func sunMeanAnomaly(T float64) float64 {
	return 357.52911 + 35999.05029*T - 0.0001537*T*T
}

// sunEclipticLongitude computes the Sun's apparent longitude in degrees
func sunEclipticLongitude(T float64) float64 {
	L0 := 280.46646 + 36000.76983*T + 0.0003032*T*T
	M := degToRad(normalizeAngle(sunMeanAnomaly(T)))

	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(M) +
		(0.019993-0.000101*T)*math.Sin(2*M) +
		0.000289*math.Sin(3*M)

	return normalizeAngle(L0 + C)
}

// moonEclipticLongitude uses the largest periodic terms of Meeus ch. 47,
// good to a few tenths of a degree
func moonEclipticLongitude(T float64) float64 {
	L := 218.3164477 + 481267.88123421*T - 0.0015786*T*T + T*T*T/538841
	D := degToRad(normalizeAngle(297.8501921 + 445267.1114034*T - 0.0018819*T*T))
	M := degToRad(normalizeAngle(sunMeanAnomaly(T)))
	Mp := degToRad(normalizeAngle(134.9633964 + 477198.8675055*T + 0.0087414*T*T))
	F := degToRad(normalizeAngle(93.2720950 + 483202.0175233*T - 0.0036539*T*T))

	lambda := L +
		6.288774*math.Sin(Mp) +
		1.274027*math.Sin(2*D-Mp) +
		0.658314*math.Sin(2*D) +
		0.213618*math.Sin(2*Mp) -
		0.185116*math.Sin(M) -
		0.114332*math.Sin(2*F) +
		0.058793*math.Sin(2*D-2*Mp) +
		0.057066*math.Sin(2*D-M-Mp)

	return normalizeAngle(lambda)
}
