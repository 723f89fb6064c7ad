package database

import (
	"time"

	"github.com/jackc/pgtype"
)

// TideReadingRecord is one row of the tide_readings hypertable
type TideReadingRecord struct {
	Time        time.Time `gorm:"column:time;primaryKey;not null"`
	StationName string    `gorm:"column:stationname;primaryKey;not null"`
	Level       float64   `gorm:"column:level;not null"`
}

// TableName specifies the table name for TideReadingRecord
func (TideReadingRecord) TableName() string {
	return "tide_readings"
}

// ForecastRunRecord is the persisted summary of one forecast job
type ForecastRunRecord struct {
	ID           string       `gorm:"column:id;primaryKey"`
	Status       string       `gorm:"column:status;not null"`
	Seasonality  string       `gorm:"column:seasonality"`
	Mode         string       `gorm:"column:mode"`
	RangeStart   string       `gorm:"column:range_start"`
	RangeEnd     string       `gorm:"column:range_end"`
	Horizon      int          `gorm:"column:horizon"`
	Config       pgtype.JSONB `gorm:"column:config;type:jsonb"`
	MAE          float64      `gorm:"column:mae"`
	MSE          float64      `gorm:"column:mse"`
	RMSE         float64      `gorm:"column:rmse"`
	TrainingRows int          `gorm:"column:training_rows"`
	ElapsedMS    int64        `gorm:"column:elapsed_ms"`
	Error        string       `gorm:"column:error"`
	FinishedAt   time.Time    `gorm:"column:finished_at;index"`
}

// TableName specifies the table name for ForecastRunRecord
func (ForecastRunRecord) TableName() string {
	return "forecast_runs"
}
