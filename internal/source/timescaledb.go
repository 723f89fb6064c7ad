package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chrissnell/remotetide/internal/database"
	"github.com/chrissnell/remotetide/internal/tide"
	"go.uber.org/zap"
)

// TimescaleSource reads one station's readings from the tide_readings
// hypertable
type TimescaleSource struct {
	ConnectionString string
	Station          string
	Location         *time.Location
	logger           *zap.SugaredLogger
}

// Load streams every reading for the station
func (s *TimescaleSource) Load(ctx context.Context) (tide.Series, error) {
	client := database.NewClient(s.ConnectionString, s.logger)
	if err := client.Connect(ctx); err != nil {
		return tide.Series{}, err
	}
	defer client.Close()

	rows, err := client.DB.WithContext(ctx).Model(&database.TideReadingRecord{}).
		Where("stationname = ?", s.Station).
		Order("time").
		Rows()
	if err != nil {
		return tide.Series{}, fmt.Errorf("error querying tide readings: %w", err)
	}
	defer rows.Close()

	var readings []tide.Reading
	for rows.Next() {
		var rec database.TideReadingRecord
		if err := client.DB.ScanRows(rows, &rec); err != nil {
			return tide.Series{}, &ParseError{Line: len(readings) + 1, Column: "row", Err: err}
		}
		if err := checkLevel(rec.Level); err != nil {
			return tide.Series{}, &ParseError{Line: len(readings) + 1, Column: "level", Value: fmt.Sprint(rec.Level), Err: err}
		}
		readings = append(readings, tide.Reading{Time: rec.Time.In(s.Location), Level: rec.Level})
	}
	if err := rows.Err(); err != nil {
		return tide.Series{}, fmt.Errorf("error iterating tide readings: %w", err)
	}

	s.logger.Infof("loaded %d tide readings for station %s from TimescaleDB", len(readings), s.Station)
	return tide.NewSeries(readings), nil
}
