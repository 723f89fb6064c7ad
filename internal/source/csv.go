package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chrissnell/remotetide/internal/tide"
	"go.uber.org/zap"
)

// CSVSource reads a CSV export with a header row naming the date and level
// columns
type CSVSource struct {
	Path        string
	DateColumn  string
	LevelColumn string
	Location    *time.Location
	logger      *zap.SugaredLogger
}

// Load reads the whole file. Any malformed row aborts the load with a
// *ParseError.
func (c *CSVSource) Load(ctx context.Context) (tide.Series, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return tide.Series{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	readings, err := ReadCSV(ctx, f, c.DateColumn, c.LevelColumn, c.Location)
	if err != nil {
		return tide.Series{}, err
	}
	if c.logger != nil {
		c.logger.Infof("loaded %d tide readings from %s", len(readings), c.Path)
	}
	return tide.NewSeries(readings), nil
}

// ReadCSV parses tide readings from r. Column names match case-insensitively.
func ReadCSV(ctx context.Context, r io.Reader, dateCol, levelCol string, loc *time.Location) ([]tide.Reading, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	dateIdx, levelIdx := -1, -1
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.EqualFold(name, dateCol):
			dateIdx = i
		case strings.EqualFold(name, levelCol):
			levelIdx = i
		}
	}
	if dateIdx < 0 || levelIdx < 0 {
		return nil, fmt.Errorf("%w: header %v lacks %q and %q columns", ErrDataParse, header, dateCol, levelCol)
	}

	var readings []tide.Reading
	for line := 2; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Line: line, Column: "row", Err: err}
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		ts, err := ParseTime(record[dateIdx], loc)
		if err != nil {
			return nil, &ParseError{Line: line, Column: dateCol, Value: record[dateIdx], Err: err}
		}
		level, err := ParseLevel(record[levelIdx])
		if err != nil {
			return nil, &ParseError{Line: line, Column: levelCol, Value: record[levelIdx], Err: err}
		}
		readings = append(readings, tide.Reading{Time: ts, Level: level})
	}
	return readings, nil
}
