package database

import (
	"context"
	"fmt"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/jackc/pgtype"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Recorder stores finished forecast runs in the forecast_runs table
type Recorder struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewRecorder returns a forecast.RunRecorder backed by db
func NewRecorder(db *gorm.DB, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// NewRunRecord converts a runner record into its table row
func NewRunRecord(run forecast.RunRecord) (ForecastRunRecord, error) {
	var cfg pgtype.JSONB
	if err := cfg.Set(run.Config); err != nil {
		return ForecastRunRecord{}, fmt.Errorf("unable to encode forecast config: %w", err)
	}

	return ForecastRunRecord{
		ID:           run.ID.String(),
		Status:       string(run.Status),
		Seasonality:  string(run.Request.Seasonality),
		Mode:         string(run.Request.Mode),
		RangeStart:   run.Request.Start.String(),
		RangeEnd:     run.Request.End.String(),
		Horizon:      run.Request.Horizon,
		Config:       cfg,
		MAE:          run.Metrics.MAE,
		MSE:          run.Metrics.MSE,
		RMSE:         run.Metrics.RMSE,
		TrainingRows: run.TrainingRows,
		ElapsedMS:    run.Elapsed.Milliseconds(),
		Error:        run.Error,
		FinishedAt:   run.FinishedAt,
	}, nil
}

// RecordRun upserts one run
func (r *Recorder) RecordRun(ctx context.Context, run forecast.RunRecord) error {
	row, err := NewRunRecord(run)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("error saving forecast run %s: %w", row.ID, err)
	}
	r.logger.Debugf("recorded forecast run %s (%s)", row.ID, row.Status)
	return nil
}

// RecentRuns returns the latest runs, newest first
func (r *Recorder) RecentRuns(ctx context.Context, limit int) ([]ForecastRunRecord, error) {
	var runs []ForecastRunRecord
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("error querying forecast runs: %w", err)
	}
	return runs, nil
}
