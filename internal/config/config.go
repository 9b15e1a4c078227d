package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/qppath/qppath/internal/solver"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "qppath.cfg.json"

// PlannerConfig holds the per-cycle corridor parameters. It is read once
// when the optimizer is initialized.
type PlannerConfig struct {
	QPDeltaS             float64 `json:"qpDeltaS" mapstructure:"qpDeltaS"`
	LateralBuffer        float64 `json:"lateralBuffer" mapstructure:"lateralBuffer"`
	MinLookAheadTime     float64 `json:"minLookAheadTime" mapstructure:"minLookAheadTime"`
	MinLookAheadDistance float64 `json:"minLookAheadDistance" mapstructure:"minLookAheadDistance"`
}

// Validate rejects spacings and distances the corridor builder cannot use.
func (c PlannerConfig) Validate() error {
	if !(c.QPDeltaS > 0) || math.IsInf(c.QPDeltaS, 1) {
		return fmt.Errorf("planner qpDeltaS must be positive, got %v", c.QPDeltaS)
	}
	if !(c.LateralBuffer >= 0) || math.IsInf(c.LateralBuffer, 1) {
		return fmt.Errorf("planner lateralBuffer must be a non-negative number, got %v", c.LateralBuffer)
	}
	if !(c.MinLookAheadTime >= 0) || math.IsInf(c.MinLookAheadTime, 1) {
		return fmt.Errorf("planner minLookAheadTime must be a non-negative number, got %v", c.MinLookAheadTime)
	}
	if !(c.MinLookAheadDistance >= 0) || math.IsInf(c.MinLookAheadDistance, 1) {
		return fmt.Errorf("planner minLookAheadDistance must be a non-negative number, got %v", c.MinLookAheadDistance)
	}
	return nil
}

// CorridorLength returns how far ahead to build the corridor at the given speed.
func (c PlannerConfig) CorridorLength(speed float64) float64 {
	return max(c.MinLookAheadTime*speed, c.MinLookAheadDistance)
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the SQLite recorder backend.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds connection settings for the Postgres recorder backend.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// DSN returns the libpq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// InfluxConfig holds settings for the InfluxDB recorder backend.
type InfluxConfig struct {
	Host      string `json:"host" mapstructure:"host"`
	Port      string `json:"port" mapstructure:"port"`
	Protocol  string `json:"protocol" mapstructure:"protocol"`
	Token     string `json:"token" mapstructure:"token"`
	Org       string `json:"org" mapstructure:"org"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	BackupDir string `json:"backupDir" mapstructure:"backupDir"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// WebSocketConfig holds settings for streaming cycles to a live viewer.
type WebSocketConfig struct {
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
	Session string `json:"session" mapstructure:"session"`
}

// StorageConfig selects and configures where finished cycles are recorded.
type StorageConfig struct {
	Type          string          `json:"type" mapstructure:"type"`
	FlushInterval time.Duration   `json:"flushInterval" mapstructure:"flushInterval"`
	QueueCapacity int             `json:"queueCapacity" mapstructure:"queueCapacity"`
	Memory        MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	Postgres      PostgresConfig  `json:"postgres" mapstructure:"postgres"`
	Influx        InfluxConfig    `json:"influx" mapstructure:"influx"`
	WebSocket     WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds metrics export settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	MetricsFile    string        `json:"metricsFile" mapstructure:"metricsFile"`
	ExportInterval time.Duration `json:"exportInterval" mapstructure:"exportInterval"`
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

var storageTypes = map[string]bool{
	"none":      true,
	"memory":    true,
	"sqlite":    true,
	"postgres":  true,
	"influx":    true,
	"websocket": true,
}

// ErrUnknownStorage is returned for an unsupported storage.type.
var ErrUnknownStorage = errors.New("unknown storage type")

// Validate checks the backend selection and recorder limits.
func (c StorageConfig) Validate() error {
	if !storageTypes[c.Type] {
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Type)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("storage flushInterval must be positive, got %v", c.FlushInterval)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("storage queueCapacity must not be negative, got %d", c.QueueCapacity)
	}
	return nil
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./qppathlogs")
	viper.SetDefault("statusFile", "")
	viper.SetDefault("statusInterval", "1s")

	viper.SetDefault("planner.qpDeltaS", 1.0)
	viper.SetDefault("planner.lateralBuffer", 0.2)
	viper.SetDefault("planner.minLookAheadTime", 6.0)
	viper.SetDefault("planner.minLookAheadDistance", 60.0)

	def := solver.DefaultConfig()
	viper.SetDefault("solver.lWeight", def.LWeight)
	viper.SetDefault("solver.dlWeight", def.DLWeight)
	viper.SetDefault("solver.ddlWeight", def.DDLWeight)
	viper.SetDefault("solver.dddlWeight", def.DDDLWeight)
	viper.SetDefault("solver.initWeight", def.InitWeight)
	viper.SetDefault("solver.maxIterations", def.MaxIterations)
	viper.SetDefault("solver.tolerance", def.Tolerance)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "1s")
	viper.SetDefault("storage.queueCapacity", 1024)
	viper.SetDefault("storage.memory.outputDir", "./cycles")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./cycles.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "qppath")
	viper.SetDefault("storage.postgres.sslMode", "disable")
	viper.SetDefault("storage.influx.host", "localhost")
	viper.SetDefault("storage.influx.port", "8086")
	viper.SetDefault("storage.influx.protocol", "http")
	viper.SetDefault("storage.influx.token", "")
	viper.SetDefault("storage.influx.org", "qppath")
	viper.SetDefault("storage.influx.bucket", "planning")
	viper.SetDefault("storage.influx.backupDir", "./qppathlogs")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.session", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "qppath")
	viper.SetDefault("otel.metricsFile", "")
	viper.SetDefault("otel.exportInterval", "10s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetPlannerConfig returns the corridor parameters.
func GetPlannerConfig() PlannerConfig {
	return PlannerConfig{
		QPDeltaS:             viper.GetFloat64("planner.qpDeltaS"),
		LateralBuffer:        viper.GetFloat64("planner.lateralBuffer"),
		MinLookAheadTime:     viper.GetFloat64("planner.minLookAheadTime"),
		MinLookAheadDistance: viper.GetFloat64("planner.minLookAheadDistance"),
	}
}

// GetSolverConfig returns the solver weights and limits.
func GetSolverConfig() solver.Config {
	return solver.Config{
		LWeight:       viper.GetFloat64("solver.lWeight"),
		DLWeight:      viper.GetFloat64("solver.dlWeight"),
		DDLWeight:     viper.GetFloat64("solver.ddlWeight"),
		DDDLWeight:    viper.GetFloat64("solver.dddlWeight"),
		InitWeight:    viper.GetFloat64("solver.initWeight"),
		MaxIterations: viper.GetInt("solver.maxIterations"),
		Tolerance:     viper.GetFloat64("solver.tolerance"),
	}
}

// GetStorageConfig returns the recorder backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		QueueCapacity: viper.GetInt("storage.queueCapacity"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
		Influx: InfluxConfig{
			Host:      viper.GetString("storage.influx.host"),
			Port:      viper.GetString("storage.influx.port"),
			Protocol:  viper.GetString("storage.influx.protocol"),
			Token:     viper.GetString("storage.influx.token"),
			Org:       viper.GetString("storage.influx.org"),
			Bucket:    viper.GetString("storage.influx.bucket"),
			BackupDir: viper.GetString("storage.influx.backupDir"),
		},
		WebSocket: WebSocketConfig{
			URL:     viper.GetString("storage.websocket.url"),
			Secret:  viper.GetString("storage.websocket.secret"),
			Session: viper.GetString("storage.websocket.session"),
		},
	}
}

// GetOTelConfig returns the metrics export settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		MetricsFile:    viper.GetString("otel.metricsFile"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
	}
}

// GetGraylogConfig returns the GELF log shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
