// Package source loads the historical tide series from a CSV export, a
// SQLite file or a TimescaleDB table.
package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/config"
	"go.uber.org/zap"
)

// ErrDataParse marks any malformed row found while loading
var ErrDataParse = errors.New("malformed tide data")

// ParseError describes one bad row
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: bad %s value %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrDataParse, e.Err}
}

// Source produces the full, immutable tide series
type Source interface {
	Load(ctx context.Context) (tide.Series, error)
}

// New builds the source described by cfg
func New(cfg config.SourceData, logger *zap.SugaredLogger) (Source, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	switch cfg.Type {
	case config.SourceCSV:
		return &CSVSource{
			Path:        cfg.Path,
			DateColumn:  cfg.DateColumn,
			LevelColumn: cfg.LevelColumn,
			Location:    loc,
			logger:      logger,
		}, nil
	case config.SourceSQLite:
		return &SQLiteSource{Path: cfg.Path, Station: cfg.Station, Location: loc, logger: logger}, nil
	case config.SourceTimescaleDB:
		return &TimescaleSource{ConnectionString: cfg.ConnectionString, Station: cfg.Station, Location: loc, logger: logger}, nil
	}
	return nil, fmt.Errorf("unsupported source type %q", cfg.Type)
}

// timestamp layouts seen in tide exports, most specific first
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
}

// ParseTime parses a timestamp. Values without a zone are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

// ParseLevel parses a level in centimetres, rejecting NaN and infinities
func ParseLevel(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return v, checkLevel(v)
}

func checkLevel(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("level is not a finite number")
	}
	return nil
}
