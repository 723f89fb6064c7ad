// Command tide-train fits a forecasting model on the configured tide series
// and writes it to disk for the server's pretrained forecast endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/chrissnell/remotetide/internal/app"
	"github.com/chrissnell/remotetide/internal/decompose"
	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/log"
	"github.com/chrissnell/remotetide/internal/source"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' or 'sqlite'")
	start := flag.String("start", "", "First training date (YYYY-MM-DD); defaults to the start of the series")
	end := flag.String("end", "", "Last training date (YYYY-MM-DD); defaults to the end of the series")
	seasonality := flag.String("seasonality", "none", "Custom seasonality: none, lunar or calendar_month")
	mode := flag.String("mode", "", "Seasonality mode: additive or multiplicative")
	out := flag.String("out", "", "Model output path; defaults to forecast.pretrained-model from the config")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgFile, *cfgBackend, *start, *end, *seasonality, *mode, *out); err != nil {
		log.Errorf("training failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgFile, cfgBackend, start, end, seasonality, mode, out string) error {
	provider, err := config.OpenProvider(cfgFile, cfgBackend)
	if err != nil {
		return err
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}
	if out == "" {
		out = cfgData.Forecast.PretrainedModel
	}
	if out == "" {
		return fmt.Errorf("no output path: pass -out or set forecast.pretrained-model")
	}

	src, err := source.New(cfgData.Source, log.Named("source"))
	if err != nil {
		return err
	}
	series, err := src.Load(ctx)
	if err != nil {
		return err
	}

	first, last, ok := series.Bounds()
	if !ok {
		return fmt.Errorf("the tide series is empty")
	}
	req := forecast.Request{Start: first, End: last}
	if req.Start, err = dateOr(start, first); err != nil {
		return err
	}
	if req.End, err = dateOr(end, last); err != nil {
		return err
	}
	if req.Seasonality, err = forecast.ParseSeasonality(seasonality); err != nil {
		return err
	}
	if req.Mode, err = forecast.ParseMode(mode); err != nil {
		return err
	}

	engine := app.NewEngine(cfgData.Forecast, log.Named("decompose"))
	configurator := forecast.NewConfigurator(engine, forecast.Limits{
		DefaultHorizon: cfgData.Forecast.DefaultHorizon,
		MaxHorizon:     cfgData.Forecast.MaxHorizon,
	}, log.Named("forecast"))

	outcome, err := configurator.Run(ctx, series, req)
	if err != nil {
		return err
	}
	if err := decompose.SaveFile(out, outcome.Model); err != nil {
		return err
	}

	log.Infow("model written",
		"path", out,
		"training_rows", outcome.TrainingRows,
		"mae", outcome.Metrics.MAE,
		"rmse", outcome.Metrics.RMSE,
		"elapsed", outcome.Elapsed,
	)
	return nil
}

func dateOr(s string, def tide.Date) (tide.Date, error) {
	if s == "" {
		return def, nil
	}
	return tide.ParseDate(s)
}
