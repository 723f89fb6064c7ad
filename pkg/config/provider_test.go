package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
source:
  type: csv
  path: /data/venice_tides.csv
  timezone: Europe/Rome
forecast:
  max-horizon: 120
  workers: 2
  pretrained-model: /data/venicetides.model
rest:
  port: 9090
  fit-rate-per-minute: 3
storage:
  timescaledb:
    connection-string: postgres://tide@localhost/tides
`

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Source.Type != SourceCSV || cfg.Source.Path != "/data/venice_tides.csv" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Source.DateColumn != "Date" || cfg.Source.LevelColumn != "Level" {
		t.Errorf("column defaults not applied: %+v", cfg.Source)
	}
	if cfg.Forecast.MaxHorizon != 120 || cfg.Forecast.DefaultHorizon != 72 || cfg.Forecast.Workers != 2 {
		t.Errorf("forecast = %+v", cfg.Forecast)
	}
	if cfg.REST.Port != 9090 || cfg.REST.ListenAddr != "0.0.0.0" || cfg.REST.FitRatePerMinute != 3 {
		t.Errorf("rest = %+v", cfg.REST)
	}
	if cfg.Storage.TimescaleDB == nil || !strings.HasPrefix(cfg.Storage.TimescaleDB.ConnectionString, "postgres://") {
		t.Errorf("storage = %+v", cfg.Storage)
	}

	rest, err := p.GetRESTServer()
	if err != nil || rest.Port != 9090 {
		t.Errorf("GetRESTServer = %+v, %v", rest, err)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConfigData)
		wantErr string
	}{
		{"valid csv", func(c *ConfigData) { c.Source.Path = "tides.csv" }, ""},
		{"csv without path", func(c *ConfigData) {}, "source.path"},
		{"unknown source", func(c *ConfigData) { c.Source.Type = "excel" }, "unsupported source type"},
		{"timescale without dsn", func(c *ConfigData) { c.Source.Type = SourceTimescaleDB }, "connection_string"},
		{"bad timezone", func(c *ConfigData) {
			c.Source.Path = "tides.csv"
			c.Source.Timezone = "Mars/Olympus"
		}, "timezone"},
		{"default beyond max", func(c *ConfigData) {
			c.Source.Path = "tides.csv"
			c.Forecast.MaxHorizon = 24
			c.Forecast.DefaultHorizon = 48
		}, "default_horizon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg ConfigData
			tt.mutate(&cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.db")
	p, err := NewSQLiteProvider(path)
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()

	if err := p.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	want := &ConfigData{
		Source: SourceData{
			Type:    SourceSQLite,
			Path:    "/data/tides.db",
			Station: "punta-salute",
		},
		Forecast: ForecastData{MaxHorizon: 168, Changepoints: 10},
		REST:     RESTServerData{Port: 8081},
	}
	if err := p.SaveConfig(want); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	// saving twice replaces rather than duplicates
	if err := p.SaveConfig(want); err != nil {
		t.Fatalf("second SaveConfig: %v", err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Source.Type != SourceSQLite || got.Source.Path != "/data/tides.db" || got.Source.Station != "punta-salute" {
		t.Errorf("source = %+v", got.Source)
	}
	if got.Source.Timezone != "Europe/Rome" {
		t.Errorf("timezone default not applied: %q", got.Source.Timezone)
	}
	if got.Forecast.MaxHorizon != 168 || got.Forecast.Changepoints != 10 || got.Forecast.DefaultHorizon != 72 {
		t.Errorf("forecast = %+v", got.Forecast)
	}
	if got.REST.Port != 8081 {
		t.Errorf("rest = %+v", got.REST)
	}
	if got.Storage.TimescaleDB != nil {
		t.Errorf("unexpected storage %+v", got.Storage.TimescaleDB)
	}
	if p.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}
}

func TestSQLiteProviderWithoutConfig(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("NewSQLiteProvider: %v", err)
	}
	defer p.Close()
	if err := p.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if _, err := p.LoadConfig(); err == nil {
		t.Fatal("expected an error when no source is configured")
	}
}

func TestOpenProvider(t *testing.T) {
	p, err := OpenProvider("config.yaml", "yaml")
	if err != nil || !p.IsReadOnly() {
		t.Errorf("yaml provider = %T, %v", p, err)
	}

	p, err = OpenProvider(filepath.Join(t.TempDir(), "config.db"), "sqlite")
	if err != nil {
		t.Fatalf("sqlite provider: %v", err)
	}
	defer p.Close()
	if p.IsReadOnly() {
		t.Error("sqlite provider should be writable")
	}

	if _, err := OpenProvider("config.toml", "toml"); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
