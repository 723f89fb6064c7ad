package decompose

import (
	"math"
	"time"

	"github.com/chrissnell/remotetide/internal/forecast"
)

const (
	secondsPerDay   = 86400.0
	yearPeriodDays  = 365.25
	weekPeriodDays  = 7.0
	weeklyOrder     = 3
	seasonPriorStd  = 10.0
	trendPriorStd   = 5.0
	minNoiseVar     = 1e-6
	minTrendForMult = 1e-3
)

// seasonality is one periodic term of the model
type seasonality struct {
	Name       string    `json:"name"`
	PeriodDays float64   `json:"period_days"`
	Order      int       `json:"order"`
	Beta       []float64 `json:"beta"`
}

func (s seasonality) width() int { return 2 * s.Order }

// seasonalities lists the periodic terms cfg enables, in a fixed order
func seasonalities(cfg forecast.Config) []seasonality {
	var out []seasonality
	if cfg.YearlySeasonality && cfg.YearlyOrder > 0 {
		out = append(out, seasonality{Name: "yearly", PeriodDays: yearPeriodDays, Order: cfg.YearlyOrder})
	}
	if cfg.WeeklySeasonality {
		out = append(out, seasonality{Name: "weekly", PeriodDays: weekPeriodDays, Order: weeklyOrder})
	}
	if cfg.DailySeasonality && cfg.DailyOrder > 0 {
		out = append(out, seasonality{Name: "daily", PeriodDays: 1, Order: cfg.DailyOrder})
	}
	if cfg.Custom != nil && cfg.Custom.FourierOrder > 0 && cfg.Custom.PeriodDays > 0 {
		out = append(out, seasonality{Name: cfg.Custom.Name, PeriodDays: cfg.Custom.PeriodDays, Order: cfg.Custom.FourierOrder})
	}
	return out
}

// epochDays is t measured in days since the Unix epoch, so that seasonal
// phase does not depend on where the training window starts
func epochDays(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9 / secondsPerDay
}

// fourier writes sin/cos pairs for harmonics 1..order of period into dst
func fourier(days, period float64, order int, dst []float64) {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * days / period
		dst[2*(k-1)] = math.Sin(x)
		dst[2*(k-1)+1] = math.Cos(x)
	}
}

// changepointLocations spreads up to n changepoints evenly over the first
// frac of the scaled history s
func changepointLocations(s []float64, n int, frac float64) []float64 {
	hist := int(math.Floor(float64(len(s)) * frac))
	if n+1 > hist {
		n = hist - 1
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(float64(i) * float64(hist-1) / float64(n)))
		out = append(out, s[idx])
	}
	return out
}

// trendRow fills dst with [1, s, (s-c1)+, (s-c2)+, ...]
func trendRow(s float64, cps []float64, dst []float64) {
	dst[0] = 1
	dst[1] = s
	for j, c := range cps {
		if s > c {
			dst[2+j] = s - c
		} else {
			dst[2+j] = 0
		}
	}
}
