package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/remotetide/internal/decompose"
	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/config"
	"go.uber.org/zap"
)

func TestLoadPretrained(t *testing.T) {
	logger := zap.NewNop().Sugar()
	engine := NewEngine(config.ForecastData{Changepoints: 5, ChangepointRange: 0.8}, logger)

	start := time.Date(2019, 11, 10, 0, 0, 0, 0, time.UTC)
	readings := make([]tide.Reading, 72)
	for i := range readings {
		readings[i] = tide.Reading{Time: start.Add(time.Duration(i) * time.Hour), Level: 50 + float64(i%12)}
	}
	cfg, err := forecast.NewConfig(forecast.CalendarMonth, forecast.ModeAdditive)
	if err != nil {
		t.Fatal(err)
	}
	model, err := engine.Fit(context.Background(), tide.NewSeries(readings), cfg)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	path := filepath.Join(t.TempDir(), "venice.model")
	if err := decompose.SaveFile(path, model); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	loaded, err := loadPretrained(engine, path)
	if err != nil {
		t.Fatalf("loadPretrained: %v", err)
	}
	if loaded.History().Len() != 72 || loaded.Config().Seasonality != forecast.CalendarMonth {
		t.Errorf("loaded model: %d readings, config %+v", loaded.History().Len(), loaded.Config())
	}

	if m, err := loadPretrained(engine, ""); m != nil || err != nil {
		t.Errorf("empty path = %v, %v", m, err)
	}
	if _, err := loadPretrained(engine, filepath.Join(t.TempDir(), "missing.model")); err == nil {
		t.Error("expected an error for a missing model file")
	}
}
