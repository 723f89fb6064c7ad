package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSource() (*SourceData, error)
	GetForecast() (*ForecastData, error)
	GetRESTServer() (*RESTServerData, error)
	GetStorageConfig() (*StorageData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Source   SourceData     `json:"source"`
	Forecast ForecastData   `json:"forecast"`
	REST     RESTServerData `json:"rest"`
	Storage  StorageData    `json:"storage,omitempty"`
}

// Source types
const (
	SourceCSV         = "csv"
	SourceSQLite      = "sqlite"
	SourceTimescaleDB = "timescaledb"
)

// SourceData says where the historical tide readings come from
type SourceData struct {
	Type             string `json:"type"`
	Path             string `json:"path,omitempty"`
	ConnectionString string `json:"connection_string,omitempty"`
	Station          string `json:"station,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	DateColumn       string `json:"date_column,omitempty"`
	LevelColumn      string `json:"level_column,omitempty"`
}

// ForecastData tunes the forecasting engine and background runner
type ForecastData struct {
	DefaultHorizon   int     `json:"default_horizon,omitempty"`
	MaxHorizon       int     `json:"max_horizon,omitempty"`
	Workers          int     `json:"workers,omitempty"`
	QueueSize        int     `json:"queue_size,omitempty"`
	MaxJobs          int     `json:"max_jobs,omitempty"`
	Changepoints     int     `json:"changepoints,omitempty"`
	ChangepointRange float64 `json:"changepoint_range,omitempty"`
	PretrainedModel  string  `json:"pretrained_model,omitempty"`
}

// RESTServerData configures the HTTP API
type RESTServerData struct {
	Cert             string  `json:"cert,omitempty"`
	Key              string  `json:"key,omitempty"`
	Port             int     `json:"port,omitempty"`
	ListenAddr       string  `json:"listen_addr,omitempty"`
	FitRatePerMinute float64 `json:"fit_rate_per_minute,omitempty"`
	FitBurst         int     `json:"fit_burst,omitempty"`
	ShutdownTimeout  string  `json:"shutdown_timeout,omitempty"`
}

// StorageData holds optional backends for recording forecast runs
type StorageData struct {
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// ApplyDefaults fills in every unset tunable
func (c *ConfigData) ApplyDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = SourceCSV
	}
	if c.Source.Station == "" {
		c.Source.Station = "venezia"
	}
	if c.Source.Timezone == "" {
		c.Source.Timezone = "Europe/Rome"
	}
	if c.Source.DateColumn == "" {
		c.Source.DateColumn = "Date"
	}
	if c.Source.LevelColumn == "" {
		c.Source.LevelColumn = "Level"
	}

	if c.Forecast.DefaultHorizon == 0 {
		c.Forecast.DefaultHorizon = 72
	}
	if c.Forecast.MaxHorizon == 0 {
		c.Forecast.MaxHorizon = 240
	}
	if c.Forecast.Workers == 0 {
		c.Forecast.Workers = 1
	}
	if c.Forecast.QueueSize == 0 {
		c.Forecast.QueueSize = 8
	}
	if c.Forecast.MaxJobs == 0 {
		c.Forecast.MaxJobs = 64
	}

	if c.REST.ListenAddr == "" {
		c.REST.ListenAddr = "0.0.0.0"
	}
	if c.REST.Port == 0 {
		c.REST.Port = 8080
	}
	if c.REST.FitRatePerMinute == 0 {
		c.REST.FitRatePerMinute = 6
	}
	if c.REST.FitBurst == 0 {
		c.REST.FitBurst = 2
	}
	if c.REST.ShutdownTimeout == "" {
		c.REST.ShutdownTimeout = "10s"
	}
}

// Validate checks the configuration for settings that cannot work
func (c *ConfigData) Validate() error {
	switch c.Source.Type {
	case SourceCSV, SourceSQLite:
		if c.Source.Path == "" {
			return fmt.Errorf("source.path is required for %s sources", c.Source.Type)
		}
	case SourceTimescaleDB:
		if c.Source.ConnectionString == "" {
			return fmt.Errorf("source.connection_string is required for timescaledb sources")
		}
	default:
		return fmt.Errorf("unsupported source type %q: use csv, sqlite or timescaledb", c.Source.Type)
	}

	if _, err := time.LoadLocation(c.Source.Timezone); err != nil {
		return fmt.Errorf("invalid source.timezone %q: %w", c.Source.Timezone, err)
	}
	if c.Forecast.MaxHorizon < 1 {
		return fmt.Errorf("forecast.max_horizon must be at least 1")
	}
	if c.Forecast.DefaultHorizon < 1 || c.Forecast.DefaultHorizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("forecast.default_horizon must be between 1 and %d", c.Forecast.MaxHorizon)
	}
	if c.Forecast.ChangepointRange < 0 || c.Forecast.ChangepointRange > 1 {
		return fmt.Errorf("forecast.changepoint_range must be within [0, 1]")
	}
	if _, err := time.ParseDuration(c.REST.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid rest.shutdown_timeout: %w", err)
	}
	return nil
}

// OpenProvider returns the provider for a configuration backend: "yaml" for
// YAML files or "sqlite" for SQLite databases
func OpenProvider(cfgFile, backend string) (ConfigProvider, error) {
	filename, err := filepath.Abs(cfgFile)
	if err != nil {
		return nil, err
	}

	switch backend {
	case "yaml":
		return NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", backend)
}
