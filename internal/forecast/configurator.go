// Package forecast drives trend/seasonality forecasts of tide levels: it
// turns a user's choices into a model configuration, fits the model through
// a pluggable Capability, extends it over an hourly horizon and scores the
// in-sample fit.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"go.uber.org/zap"
)

// Stage reports how far a forecast has progressed
type Stage string

const (
	StageQueued      Stage = "queued"
	StageFitting     Stage = "fitting"
	StageForecasting Stage = "forecasting"
	StageEvaluating  Stage = "evaluating"
	StageDone        Stage = "done"
)

// Request carries everything a user picks for one forecast
type Request struct {
	Start       tide.Date         `json:"start"`
	End         tide.Date         `json:"end"`
	Seasonality SeasonalityChoice `json:"seasonality"`
	Mode        Mode              `json:"mode"`
	Horizon     int               `json:"horizon"`
}

// Outcome bundles a fitted model with its forecast and in-sample metrics
type Outcome struct {
	Config       Config        `json:"config"`
	Model        Model         `json:"-"`
	Forecast     Result        `json:"forecast"`
	Metrics      Metrics       `json:"metrics"`
	TrainingRows int           `json:"training_rows"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// Limits bounds the forecast horizon. Zero fields take the package defaults.
type Limits struct {
	DefaultHorizon int
	MaxHorizon     int
}

// Configurator validates forecast requests and runs them against a Capability
type Configurator struct {
	capability Capability
	limits     Limits
	logger     *zap.SugaredLogger
}

// NewConfigurator creates a configurator
func NewConfigurator(capability Capability, limits Limits, logger *zap.SugaredLogger) *Configurator {
	if limits.MaxHorizon <= 0 {
		limits.MaxHorizon = DefaultMaxHorizon
	}
	if limits.DefaultHorizon <= 0 || limits.DefaultHorizon > limits.MaxHorizon {
		limits.DefaultHorizon = min(DefaultHorizon, limits.MaxHorizon)
	}
	return &Configurator{
		capability: capability,
		limits:     limits,
		logger:     logger,
	}
}

// Limits returns the effective horizon bounds
func (c *Configurator) Limits() Limits {
	return c.limits
}

// Run filters series to the request's date range and fits on the result.
// A range that selects nothing is reported as ErrInvalidRange.
func (c *Configurator) Run(ctx context.Context, series tide.Series, req Request) (*Outcome, error) {
	return c.run(ctx, series, req, nil)
}

func (c *Configurator) run(ctx context.Context, series tide.Series, req Request, report func(Stage)) (*Outcome, error) {
	if req.Start.After(req.End) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, req.Start, req.End)
	}
	training := series.Filter(req.Start, req.End)
	if training.Len() == 0 {
		return nil, fmt.Errorf("%w: nothing between %s and %s", ErrInvalidRange, req.Start, req.End)
	}
	return c.fit(ctx, training, req, report)
}

// Fit trains on an already filtered series. Horizon 0 selects the default
// horizon.
func (c *Configurator) Fit(ctx context.Context, training tide.Series, req Request) (*Outcome, error) {
	return c.fit(ctx, training, req, nil)
}

func (c *Configurator) fit(ctx context.Context, training tide.Series, req Request, report func(Stage)) (*Outcome, error) {
	started := time.Now()

	horizon, err := c.horizon(req.Horizon)
	if err != nil {
		return nil, err
	}

	cfg, err := NewConfig(req.Seasonality, req.Mode)
	if err != nil {
		return nil, err
	}

	if training.DistinctTimes(2) < 2 {
		return nil, fmt.Errorf("%w: %d readings", ErrInsufficientData, training.Len())
	}

	notify(report, StageFitting)
	c.logger.Debugf("fitting %s/%s model on %d readings", cfg.Seasonality, cfg.Mode, training.Len())
	model, err := c.capability.Fit(ctx, training, cfg)
	if err != nil {
		fitErrors.WithLabelValues(string(cfg.Seasonality), string(cfg.Mode)).Inc()
		return nil, fmt.Errorf("model fit failed: %w", err)
	}
	fitDuration.WithLabelValues(string(cfg.Seasonality), string(cfg.Mode)).Observe(time.Since(started).Seconds())

	out, err := c.forecast(ctx, model, horizon, report)
	if err != nil {
		return nil, err
	}
	out.Elapsed = time.Since(started)
	c.logger.Infow("forecast complete",
		"seasonality", cfg.Seasonality,
		"mode", cfg.Mode,
		"training_rows", out.TrainingRows,
		"horizon", horizon,
		"rmse", out.Metrics.RMSE,
		"elapsed", out.Elapsed,
	)
	return out, nil
}

// Pretrained skips fitting and forecasts straight from a persisted model
func (c *Configurator) Pretrained(ctx context.Context, model Model, horizon int) (*Outcome, error) {
	started := time.Now()
	h, err := c.horizon(horizon)
	if err != nil {
		return nil, err
	}
	out, err := c.forecast(ctx, model, h, nil)
	if err != nil {
		return nil, err
	}
	out.Elapsed = time.Since(started)
	return out, nil
}

func (c *Configurator) forecast(ctx context.Context, model Model, horizon int, report func(Stage)) (*Outcome, error) {
	notify(report, StageForecasting)
	grid := c.capability.MakeFutureGrid(model, horizon, time.Hour)
	result, err := c.capability.Predict(ctx, model, grid)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	history := model.History()
	if last, ok := history.Last(); ok {
		result.HistoryLen = countHistory(result.Points, last.Time)
	}

	notify(report, StageEvaluating)
	metrics, err := Evaluate(AlignHistory(history, result))
	if err != nil {
		return nil, err
	}

	notify(report, StageDone)
	return &Outcome{
		Config:       model.Config(),
		Model:        model,
		Forecast:     result,
		Metrics:      metrics,
		TrainingRows: history.Len(),
	}, nil
}

func (c *Configurator) horizon(h int) (int, error) {
	if h == 0 {
		return c.limits.DefaultHorizon, nil
	}
	if h < 1 || h > c.limits.MaxHorizon {
		return 0, fmt.Errorf("%w: %d hours, must be between 1 and %d", ErrInvalidHorizon, h, c.limits.MaxHorizon)
	}
	return h, nil
}

func notify(report func(Stage), s Stage) {
	if report != nil {
		report(s)
	}
}
