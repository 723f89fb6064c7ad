package forecast

import (
	"context"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"go.uber.org/zap"
)

// fakeModel predicts a constant offset from the training mean
type fakeModel struct {
	cfg     Config
	history tide.Series
	mean    float64
}

func (m *fakeModel) Config() Config       { return m.cfg }
func (m *fakeModel) History() tide.Series { return m.history }

// fakeCapability records what it was asked to do. When block is set, Fit
// waits on it or on ctx, whichever comes first.
type fakeCapability struct {
	fitCalls  int
	lastCfg   Config
	lastTrain tide.Series
	block     chan struct{}
	fitErr    error
}

func (f *fakeCapability) Fit(ctx context.Context, training tide.Series, cfg Config) (Model, error) {
	f.fitCalls++
	f.lastCfg = cfg
	f.lastTrain = training

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fitErr != nil {
		return nil, f.fitErr
	}

	sum := 0.0
	for i := 0; i < training.Len(); i++ {
		sum += training.At(i).Level
	}
	return &fakeModel{cfg: cfg, history: training, mean: sum / float64(training.Len())}, nil
}

func (f *fakeCapability) MakeFutureGrid(m Model, horizon int, freq time.Duration) []time.Time {
	h := m.History()
	grid := make([]time.Time, 0, h.Len()+horizon)
	for i := 0; i < h.Len(); i++ {
		grid = append(grid, h.At(i).Time)
	}
	last, _ := h.Last()
	for i := 1; i <= horizon; i++ {
		grid = append(grid, last.Time.Add(time.Duration(i)*freq))
	}
	return grid
}

func (f *fakeCapability) Predict(ctx context.Context, m Model, grid []time.Time) (Result, error) {
	fm := m.(*fakeModel)
	points := make([]Point, len(grid))
	for i, t := range grid {
		points[i] = Point{Time: t, Predicted: fm.mean, Lower: fm.mean - 1, Upper: fm.mean + 1, Trend: fm.mean}
	}
	return Result{Points: points}, nil
}

func hourly(start time.Time, levels ...float64) tide.Series {
	readings := make([]tide.Reading, len(levels))
	for i, l := range levels {
		readings[i] = tide.Reading{Time: start.Add(time.Duration(i) * time.Hour), Level: l}
	}
	return tide.NewSeries(readings)
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
