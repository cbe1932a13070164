// Package config loads the simulator's JSON configuration through viper and
// exposes typed views of its sections.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "firearm_sim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration
	// Path of the on-disk snapshot. Empty derives a name from the session.
	Path string
}

// GormConfig holds the batch writer settings shared by the SQL backends.
type GormConfig struct {
	WriteInterval time.Duration
	BatchSize     int
}

// WebSocketConfig holds the live viewer stream settings.
type WebSocketConfig struct {
	URL    string
	Secret string
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type      string // memory, sqlite, postgres or websocket
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	Gorm      GormConfig
	WebSocket WebSocketConfig
}

// SimulationConfig controls the fixed-step simulation loop.
type SimulationConfig struct {
	TickRate       float64 // ticks per second
	FireRatePolicy string  // absolute or catchup
	Seed           int64
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// InfluxConfig holds the InfluxDB telemetry connection settings.
type InfluxConfig struct {
	Enabled  bool
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string
}

// OTelConfig holds OpenTelemetry metric settings.
type OTelConfig struct {
	Enabled     bool
	ServiceName string
}

// APIConfig holds the recording server settings.
type APIConfig struct {
	ServerURL string
	APIKey    string
	// Upload sends exported recordings to the server when a session ends.
	Upload bool
}

// MonitorConfig holds the status monitor settings.
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GraylogConfig holds the GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// EnvPrefix prefixes environment overrides: FIREARM_STORAGE_TYPE overrides
// storage.type.
const EnvPrefix = "FIREARM"

var defaults = map[string]any{
	"logLevel":   "info",
	"defaultTag": "Range",
	"logsDir":    "./logs",

	"presets.path": "./presets",

	"simulation.tickRate":       60.0,
	"simulation.fireRatePolicy": "absolute",
	"simulation.seed":           1,

	"dispatcher.bufferSize": 10000,

	"db.host":     "localhost",
	"db.port":     "5432",
	"db.username": "postgres",
	"db.password": "postgres",
	"db.database": "firearm_sim",

	"influx.enabled":  false,
	"influx.host":     "localhost",
	"influx.port":     "8086",
	"influx.protocol": "http",
	"influx.token":    "supersecrettoken",
	"influx.org":      "firearm-sim",
	"influx.bucket":   "firearm_shots",

	"graylog.enabled": false,
	"graylog.address": "localhost:12201",

	"storage.type":                  "memory",
	"storage.memory.outputDir":      "./recordings",
	"storage.memory.compressOutput": true,
	"storage.sqlite.dumpInterval":   "3m",
	"storage.sqlite.path":           "",
	"storage.gorm.writeInterval":    "2s",
	"storage.gorm.batchSize":        500,
	"storage.websocket.url":         "ws://localhost:5000/api/v1/stream",
	"storage.websocket.secret":      "",

	"api.serverUrl": "http://localhost:5000",
	"api.apiKey":    "",
	"api.upload":    false,

	"monitor.enabled":  true,
	"monitor.interval": "1s",

	"otel.enabled":     false,
	"otel.serviceName": "firearm-sim",
}

// Load applies defaults and environment overrides, then reads the JSON
// config file from configDir.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SetDefaults registers the default value of every known key.
func SetDefaults() {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// GetDBConfig returns the db section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			Path:         viper.GetString("storage.sqlite.path"),
		},
		Gorm: GormConfig{
			WriteInterval: viper.GetDuration("storage.gorm.writeInterval"),
			BatchSize:     viper.GetInt("storage.gorm.batchSize"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetSimulationConfig returns the simulation section.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TickRate:       viper.GetFloat64("simulation.tickRate"),
		FireRatePolicy: viper.GetString("simulation.fireRatePolicy"),
		Seed:           viper.GetInt64("simulation.seed"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:     viper.GetBool("otel.enabled"),
		ServiceName: viper.GetString("otel.serviceName"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetAPIConfig returns the api section.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Upload:    viper.GetBool("api.upload"),
	}
}

// GetMonitorConfig returns the monitor section.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}
