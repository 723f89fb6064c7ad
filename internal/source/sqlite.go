package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteSchema creates the readings table used by SQLiteSource
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS tide_readings (
	stationname TEXT NOT NULL,
	time TEXT NOT NULL,
	level REAL NOT NULL,
	PRIMARY KEY (stationname, time)
);
`

// SQLiteSource reads one station's readings from a SQLite file
type SQLiteSource struct {
	Path     string
	Station  string
	Location *time.Location
	logger   *zap.SugaredLogger
}

// Load reads every reading for the station
func (s *SQLiteSource) Load(ctx context.Context) (tide.Series, error) {
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return tide.Series{}, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer db.Close()

	readings, err := QuerySQLite(ctx, db, s.Station, s.Location)
	if err != nil {
		return tide.Series{}, err
	}
	if s.logger != nil {
		s.logger.Infof("loaded %d tide readings for station %s from %s", len(readings), s.Station, s.Path)
	}
	return tide.NewSeries(readings), nil
}

// QuerySQLite reads the station's readings from db
func QuerySQLite(ctx context.Context, db *sql.DB, station string, loc *time.Location) ([]tide.Reading, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT CAST(time AS TEXT), level FROM tide_readings WHERE stationname = ? ORDER BY time`, station)
	if err != nil {
		return nil, fmt.Errorf("failed to query tide readings: %w", err)
	}
	defer rows.Close()

	var readings []tide.Reading
	row := 0
	for rows.Next() {
		row++
		var ts string
		var level sql.NullFloat64
		if err := rows.Scan(&ts, &level); err != nil {
			return nil, &ParseError{Line: row, Column: "row", Err: err}
		}
		t, err := ParseTime(ts, loc)
		if err != nil {
			return nil, &ParseError{Line: row, Column: "time", Value: ts, Err: err}
		}
		if !level.Valid {
			return nil, &ParseError{Line: row, Column: "level", Value: "NULL", Err: fmt.Errorf("missing level")}
		}
		if err := checkLevel(level.Float64); err != nil {
			return nil, &ParseError{Line: row, Column: "level", Value: fmt.Sprint(level.Float64), Err: err}
		}
		readings = append(readings, tide.Reading{Time: t, Level: level.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tide readings: %w", err)
	}
	return readings, nil
}
