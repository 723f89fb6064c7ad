package forecast

import "github.com/prometheus/client_golang/prometheus"

var (
	fitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remotetide_forecast_fit_duration_seconds",
			Help:    "Time spent fitting forecast models.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"seasonality", "mode"},
	)

	fitErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotetide_forecast_fit_errors_total",
			Help: "Forecast model fits that returned an error.",
		},
		[]string{"seasonality", "mode"},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotetide_forecast_jobs_total",
			Help: "Background forecast jobs by final status.",
		},
		[]string{"status"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "remotetide_forecast_queue_depth",
			Help: "Forecast jobs waiting for a worker.",
		},
	)
)

func init() {
	prometheus.MustRegister(fitDuration, fitErrors, jobsTotal, queueDepth)
}
