package config

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS sources (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	path TEXT,
	connection_string TEXT,
	station TEXT,
	timezone TEXT,
	date_column TEXT,
	level_column TEXT
);
CREATE TABLE IF NOT EXISTS forecast_settings (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	default_horizon INTEGER,
	max_horizon INTEGER,
	workers INTEGER,
	queue_size INTEGER,
	max_jobs INTEGER,
	changepoints INTEGER,
	changepoint_range REAL,
	pretrained_model TEXT
);
CREATE TABLE IF NOT EXISTS rest_servers (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	cert TEXT,
	key TEXT,
	port INTEGER,
	listen_addr TEXT,
	fit_rate_per_minute REAL,
	fit_burst INTEGER,
	shutdown_timeout TEXT
);
CREATE TABLE IF NOT EXISTS storage_configs (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	timescale_connection_string TEXT
);
`

const defaultConfigID = `(SELECT id FROM configs WHERE name = 'default')`

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// InitSchema creates the configuration tables if they do not exist
func (s *SQLiteProvider) InitSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create configuration schema: %w", err)
	}
	return nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	source, err := s.GetSource()
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	config.Source = *source

	forecast, err := s.GetForecast()
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast settings: %w", err)
	}
	config.Forecast = *forecast

	rest, err := s.GetRESTServer()
	if err != nil {
		return nil, fmt.Errorf("failed to load REST server config: %w", err)
	}
	config.REST = *rest

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// GetSource returns the reading source configuration
func (s *SQLiteProvider) GetSource() (*SourceData, error) {
	query := `
		SELECT type, path, connection_string, station, timezone, date_column, level_column
		FROM sources
		WHERE config_id = ` + defaultConfigID

	var src SourceData
	var path, connStr, station, tz, dateCol, levelCol sql.NullString
	err := s.db.QueryRow(query).Scan(&src.Type, &path, &connStr, &station, &tz, &dateCol, &levelCol)
	if err != nil {
		return nil, fmt.Errorf("failed to query source: %w", err)
	}

	// Convert nullable string fields to empty strings if NULL
	src.Path = path.String
	src.ConnectionString = connStr.String
	src.Station = station.String
	src.Timezone = tz.String
	src.DateColumn = dateCol.String
	src.LevelColumn = levelCol.String

	return &src, nil
}

// GetForecast returns forecast settings; a missing row means all defaults
func (s *SQLiteProvider) GetForecast() (*ForecastData, error) {
	query := `
		SELECT default_horizon, max_horizon, workers, queue_size, max_jobs,
		       changepoints, changepoint_range, pretrained_model
		FROM forecast_settings
		WHERE config_id = ` + defaultConfigID

	var f ForecastData
	var defHorizon, maxHorizon, workers, queueSize, maxJobs, cps sql.NullInt64
	var cpRange sql.NullFloat64
	var model sql.NullString

	err := s.db.QueryRow(query).Scan(&defHorizon, &maxHorizon, &workers, &queueSize, &maxJobs, &cps, &cpRange, &model)
	if errors.Is(err, sql.ErrNoRows) {
		return &f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast settings: %w", err)
	}

	f.DefaultHorizon = int(defHorizon.Int64)
	f.MaxHorizon = int(maxHorizon.Int64)
	f.Workers = int(workers.Int64)
	f.QueueSize = int(queueSize.Int64)
	f.MaxJobs = int(maxJobs.Int64)
	f.Changepoints = int(cps.Int64)
	f.ChangepointRange = cpRange.Float64
	f.PretrainedModel = model.String

	return &f, nil
}

// GetRESTServer returns REST server settings; a missing row means all defaults
func (s *SQLiteProvider) GetRESTServer() (*RESTServerData, error) {
	query := `
		SELECT cert, key, port, listen_addr, fit_rate_per_minute, fit_burst, shutdown_timeout
		FROM rest_servers
		WHERE config_id = ` + defaultConfigID

	var r RESTServerData
	var cert, key, listenAddr, shutdown sql.NullString
	var port, burst sql.NullInt64
	var rate sql.NullFloat64

	err := s.db.QueryRow(query).Scan(&cert, &key, &port, &listenAddr, &rate, &burst, &shutdown)
	if errors.Is(err, sql.ErrNoRows) {
		return &r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query REST server config: %w", err)
	}

	r.Cert = cert.String
	r.Key = key.String
	r.Port = int(port.Int64)
	r.ListenAddr = listenAddr.String
	r.FitRatePerMinute = rate.Float64
	r.FitBurst = int(burst.Int64)
	r.ShutdownTimeout = shutdown.String

	return &r, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	query := `SELECT timescale_connection_string FROM storage_configs WHERE config_id = ` + defaultConfigID

	var storage StorageData
	var connStr sql.NullString
	err := s.db.QueryRow(query).Scan(&connStr)
	if errors.Is(err, sql.ErrNoRows) {
		return &storage, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query storage config: %w", err)
	}

	if connStr.Valid && connStr.String != "" {
		storage.TimescaleDB = &TimescaleDBData{ConnectionString: connStr.String}
	}
	return &storage, nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the default configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, "default")
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	src := configData.Source
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO sources (config_id, type, path, connection_string, station, timezone, date_column, level_column)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, src.Type, nullString(src.Path), nullString(src.ConnectionString), nullString(src.Station),
		nullString(src.Timezone), nullString(src.DateColumn), nullString(src.LevelColumn),
	); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	f := configData.Forecast
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO forecast_settings (config_id, default_horizon, max_horizon, workers, queue_size,
			max_jobs, changepoints, changepoint_range, pretrained_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, f.DefaultHorizon, f.MaxHorizon, f.Workers, f.QueueSize,
		f.MaxJobs, f.Changepoints, f.ChangepointRange, nullString(f.PretrainedModel),
	); err != nil {
		return fmt.Errorf("failed to save forecast settings: %w", err)
	}

	r := configData.REST
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO rest_servers (config_id, cert, key, port, listen_addr, fit_rate_per_minute, fit_burst, shutdown_timeout)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, nullString(r.Cert), nullString(r.Key), r.Port, nullString(r.ListenAddr),
		r.FitRatePerMinute, r.FitBurst, nullString(r.ShutdownTimeout),
	); err != nil {
		return fmt.Errorf("failed to save REST server config: %w", err)
	}

	var tsConn sql.NullString
	if configData.Storage.TimescaleDB != nil {
		tsConn = nullString(configData.Storage.TimescaleDB.ConnectionString)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO storage_configs (config_id, timescale_connection_string) VALUES (?, ?)`,
		configID, tsConn); err != nil {
		return fmt.Errorf("failed to save storage config: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, name)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
