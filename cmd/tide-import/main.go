// Command tide-import loads a tide CSV export into the TimescaleDB
// tide_readings hypertable using COPY.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/chrissnell/remotetide/internal/log"
	"github.com/chrissnell/remotetide/internal/source"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSchema = `
CREATE TABLE IF NOT EXISTS tide_readings (
	time TIMESTAMPTZ NOT NULL,
	stationname TEXT NOT NULL,
	level DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (stationname, time)
);
SELECT create_hypertable('tide_readings', 'time', if_not_exists => TRUE);
`

type Config struct {
	ConnectionString string
	CSVFile          string
	Station          string
	Timezone         string
	DateColumn       string
	LevelColumn      string
	BatchSize        int
	CreateSchema     bool
}

func main() {
	var cfg Config

	flag.StringVar(&cfg.ConnectionString, "connection-string", "", "TimescaleDB connection string (required)")
	flag.StringVar(&cfg.CSVFile, "file", "", "CSV file to import (required)")
	flag.StringVar(&cfg.Station, "station", "venezia", "Station name to file the readings under")
	flag.StringVar(&cfg.Timezone, "timezone", "Europe/Rome", "Time zone of timestamps without an offset")
	flag.StringVar(&cfg.DateColumn, "date-column", "Date", "CSV column holding the timestamp")
	flag.StringVar(&cfg.LevelColumn, "level-column", "Level", "CSV column holding the level in cm")
	flag.IntVar(&cfg.BatchSize, "batch", 10000, "Number of rows to copy per transaction")
	flag.BoolVar(&cfg.CreateSchema, "create-schema", false, "Create the tide_readings hypertable if missing")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.ConnectionString == "" || cfg.CSVFile == "" {
		log.Fatal("-connection-string and -file are required")
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("import failed: %v", err)
	}
}

func run(ctx context.Context, cfg Config) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	file, err := os.Open(cfg.CSVFile)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	readings, err := source.ReadCSV(ctx, file, cfg.DateColumn, cfg.LevelColumn, loc)
	if err != nil {
		return err
	}
	log.Infof("parsed %d readings from %s", len(readings), cfg.CSVFile)

	pool, err := pgxpool.New(ctx, cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.CreateSchema {
		if _, err := pool.Exec(ctx, createSchema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 10000
	}

	var inserted int64
	for from := 0; from < len(readings); from += batchSize {
		to := min(from+batchSize, len(readings))
		n, err := copyBatch(ctx, pool, cfg.Station, readings[from:to])
		if err != nil {
			return fmt.Errorf("rows %d-%d: %w", from, to, err)
		}
		inserted += n
		log.Infof("imported %d/%d readings (%d new)", to, len(readings), inserted)
	}

	log.Infof("import complete: %d new readings for station %s", inserted, cfg.Station)
	return nil
}

// copyBatch COPYs readings into a temporary table and merges them, so
// re-importing an export skips rows that are already stored
func copyBatch(ctx context.Context, pool *pgxpool.Pool, station string, readings []tide.Reading) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE tide_import (LIKE tide_readings INCLUDING DEFAULTS) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	rows := make([][]any, len(readings))
	for i, r := range readings {
		rows[i] = []any{r.Time, station, r.Level}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"tide_import"},
		[]string{"time", "stationname", "level"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return 0, fmt.Errorf("copy failed: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO tide_readings (time, stationname, level)
		SELECT time, stationname, level FROM tide_import
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("merge failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
