package decompose

import (
	"time"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
)

const modelVersion = 1

// Model is a fitted piecewise-linear trend plus Fourier seasonalities. All
// coefficients live in scaled units: time runs 0..1 across the training
// window and levels are divided by YScale.
type Model struct {
	Version      int             `json:"version"`
	Cfg          forecast.Config `json:"config"`
	Readings     []tide.Reading  `json:"history"`
	Location     string          `json:"location"`
	Start        time.Time       `json:"start"`
	SpanSeconds  float64         `json:"span_seconds"`
	YScale       float64         `json:"y_scale"`
	K            float64         `json:"k"`
	M            float64         `json:"m"`
	Changepoints []float64       `json:"changepoints"`
	Deltas       []float64       `json:"deltas"`
	Seasonal     []seasonality   `json:"seasonal"`
	Sigma        float64         `json:"sigma"`

	history tide.Series
}

func (m *Model) Config() forecast.Config { return m.Cfg }
func (m *Model) History() tide.Series    { return m.history }

func (m *Model) scaleTime(t time.Time) float64 {
	return t.Sub(m.Start).Seconds() / m.SpanSeconds
}

// trend evaluates the piecewise-linear trend at scaled time s
func (m *Model) trend(s float64) float64 {
	g := m.K*s + m.M
	for j, c := range m.Changepoints {
		if s > c {
			g += m.Deltas[j] * (s - c)
		}
	}
	return g
}

// seasonal returns each seasonality's contribution at t and their sum
func (m *Model) seasonal(t time.Time, scratch []float64) ([]float64, float64) {
	days := epochDays(t)
	parts := make([]float64, len(m.Seasonal))
	total := 0.0
	for i, s := range m.Seasonal {
		buf := scratch[:s.width()]
		fourier(days, s.PeriodDays, s.Order, buf)
		v := 0.0
		for j, b := range s.Beta {
			v += b * buf[j]
		}
		parts[i] = v
		total += v
	}
	return parts, total
}
