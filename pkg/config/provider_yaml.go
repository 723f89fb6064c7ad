package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Source   SourceYAML     `yaml:"source"`
		Forecast ForecastYAML   `yaml:"forecast,omitempty"`
		REST     RESTServerYAML `yaml:"rest,omitempty"`
		Storage  StorageYAML    `yaml:"storage,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Source: SourceData{
			Type:             yamlConfig.Source.Type,
			Path:             yamlConfig.Source.Path,
			ConnectionString: yamlConfig.Source.ConnectionString,
			Station:          yamlConfig.Source.Station,
			Timezone:         yamlConfig.Source.Timezone,
			DateColumn:       yamlConfig.Source.DateColumn,
			LevelColumn:      yamlConfig.Source.LevelColumn,
		},
		Forecast: ForecastData{
			DefaultHorizon:   yamlConfig.Forecast.DefaultHorizon,
			MaxHorizon:       yamlConfig.Forecast.MaxHorizon,
			Workers:          yamlConfig.Forecast.Workers,
			QueueSize:        yamlConfig.Forecast.QueueSize,
			MaxJobs:          yamlConfig.Forecast.MaxJobs,
			Changepoints:     yamlConfig.Forecast.Changepoints,
			ChangepointRange: yamlConfig.Forecast.ChangepointRange,
			PretrainedModel:  yamlConfig.Forecast.PretrainedModel,
		},
		REST: RESTServerData{
			Cert:             yamlConfig.REST.Cert,
			Key:              yamlConfig.REST.Key,
			Port:             yamlConfig.REST.Port,
			ListenAddr:       yamlConfig.REST.ListenAddr,
			FitRatePerMinute: yamlConfig.REST.FitRatePerMinute,
			FitBurst:         yamlConfig.REST.FitBurst,
			ShutdownTimeout:  yamlConfig.REST.ShutdownTimeout,
		},
	}

	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetSource returns the reading source configuration
func (y *YAMLProvider) GetSource() (*SourceData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Source, nil
}

// GetForecast returns the forecasting configuration
func (y *YAMLProvider) GetForecast() (*ForecastData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Forecast, nil
}

// GetRESTServer returns the REST server configuration
func (y *YAMLProvider) GetRESTServer() (*RESTServerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.REST, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Storage, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags
type SourceYAML struct {
	Type             string `yaml:"type"`
	Path             string `yaml:"path,omitempty"`
	ConnectionString string `yaml:"connection-string,omitempty"`
	Station          string `yaml:"station,omitempty"`
	Timezone         string `yaml:"timezone,omitempty"`
	DateColumn       string `yaml:"date-column,omitempty"`
	LevelColumn      string `yaml:"level-column,omitempty"`
}

type ForecastYAML struct {
	DefaultHorizon   int     `yaml:"default-horizon,omitempty"`
	MaxHorizon       int     `yaml:"max-horizon,omitempty"`
	Workers          int     `yaml:"workers,omitempty"`
	QueueSize        int     `yaml:"queue-size,omitempty"`
	MaxJobs          int     `yaml:"max-jobs,omitempty"`
	Changepoints     int     `yaml:"changepoints,omitempty"`
	ChangepointRange float64 `yaml:"changepoint-range,omitempty"`
	PretrainedModel  string  `yaml:"pretrained-model,omitempty"`
}

type RESTServerYAML struct {
	Cert             string  `yaml:"cert,omitempty"`
	Key              string  `yaml:"key,omitempty"`
	Port             int     `yaml:"port,omitempty"`
	ListenAddr       string  `yaml:"listen-addr,omitempty"`
	FitRatePerMinute float64 `yaml:"fit-rate-per-minute,omitempty"`
	FitBurst         int     `yaml:"fit-burst,omitempty"`
	ShutdownTimeout  string  `yaml:"shutdown-timeout,omitempty"`
}

type StorageYAML struct {
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}
