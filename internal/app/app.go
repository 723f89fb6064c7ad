// Package app wires the tide series, the forecasting pipeline and the REST
// API together and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/remotetide/internal/controllers/restserver"
	"github.com/chrissnell/remotetide/internal/database"
	"github.com/chrissnell/remotetide/internal/decompose"
	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/log"
	"github.com/chrissnell/remotetide/internal/source"
	"github.com/chrissnell/remotetide/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// NewEngine builds the decomposition engine from forecast settings
func NewEngine(fc config.ForecastData, logger *zap.SugaredLogger) *decompose.Engine {
	return decompose.New(decompose.Options{
		Changepoints:     fc.Changepoints,
		ChangepointRange: fc.ChangepointRange,
	}, logger)
}

// Run loads the series and serves it until a signal arrives or ctx ends
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfgData, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	src, err := source.New(cfgData.Source, log.Named("source"))
	if err != nil {
		return err
	}
	series, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("error loading tide readings: %w", err)
	}
	if first, last, ok := series.Bounds(); ok {
		a.logger.Infof("tide series covers %s to %s (%d readings)", first, last, series.Len())
	} else {
		a.logger.Warn("tide series is empty; every range query will return nothing")
	}

	engine := NewEngine(cfgData.Forecast, log.Named("decompose"))
	configurator := forecast.NewConfigurator(engine, forecast.Limits{
		DefaultHorizon: cfgData.Forecast.DefaultHorizon,
		MaxHorizon:     cfgData.Forecast.MaxHorizon,
	}, log.Named("forecast"))

	pretrained, err := loadPretrained(engine, cfgData.Forecast.PretrainedModel)
	if err != nil {
		return err
	}

	opts := forecast.RunnerOptions{
		Workers:   cfgData.Forecast.Workers,
		QueueSize: cfgData.Forecast.QueueSize,
		MaxJobs:   cfgData.Forecast.MaxJobs,
	}
	if ts := cfgData.Storage.TimescaleDB; ts != nil && ts.ConnectionString != "" {
		client := database.NewClient(ts.ConnectionString, log.Named("database"))
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("could not connect to forecast run storage: %w", err)
		}
		defer client.Close()
		opts.Recorder = database.NewRecorder(client.DB, log.Named("database"))
	}
	runner := forecast.NewRunner(configurator, series, opts, log.Named("runner"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Start(gctx)
	})

	ctrl, err := restserver.NewController(gctx, &wg, cfgData.REST, restserver.Dependencies{
		Series:       series,
		Configurator: configurator,
		Runner:       runner,
		Pretrained:   pretrained,
	}, log.Named("rest"))
	if err != nil {
		cancel()
		g.Wait()
		return err
	}
	if err := ctrl.StartController(); err != nil {
		cancel()
		g.Wait()
		return err
	}

	log.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-gctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	err = g.Wait()
	log.Info("shutdown complete")

	return err
}

// loadPretrained reads a persisted model, if one is configured
func loadPretrained(loader forecast.ModelLoader, path string) (forecast.Model, error) {
	if path == "" {
		return nil, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading pretrained model: %w", err)
	}
	model, err := loader.Load(blob)
	if err != nil {
		return nil, fmt.Errorf("error loading pretrained model %s: %w", path, err)
	}
	log.Infof("loaded pretrained model from %s (%d training readings)", path, model.History().Len())
	return model, nil
}
