package forecast

import (
	"context"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
)

// Model is a fitted forecaster. Implementations must be safe to read from
// several goroutines once returned by Fit or Load.
type Model interface {
	Config() Config
	History() tide.Series
}

// Capability is the trend/seasonality fitting engine the configurator drives
type Capability interface {
	// Fit trains a model on the given series with cfg
	Fit(ctx context.Context, training tide.Series, cfg Config) (Model, error)

	// MakeFutureGrid returns the training timestamps followed by horizon
	// evenly spaced steps of freq after the last training timestamp
	MakeFutureGrid(m Model, horizon int, freq time.Duration) []time.Time

	// Predict evaluates the model at every grid timestamp
	Predict(ctx context.Context, m Model, grid []time.Time) (Result, error)
}

// ModelLoader restores a model persisted by a previous fit
type ModelLoader interface {
	Load(blob []byte) (Model, error)
}
