package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/sqlitestore/pkg/sqlitestore"
	"github.com/rs/zerolog"
)

// Config represents the main sqlitestore configuration
type Config struct {
	// Store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint for serve
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// StoreConfig mirrors sqlitestore.Options in file form
type StoreConfig struct {
	Dir         string        `json:"dir" mapstructure:"dir"`
	Filename    string        `json:"filename" mapstructure:"filename"`
	Table       string        `json:"table" mapstructure:"table"`
	DefaultTTL  time.Duration `json:"default_ttl" mapstructure:"default_ttl"`
	JournalMode string        `json:"journal_mode" mapstructure:"journal_mode"` // DELETE, TRUNCATE, PERSIST, MEMORY, WAL, OFF
	Synchronous string        `json:"synchronous" mapstructure:"synchronous"`   // OFF, NORMAL, FULL, EXTRA
	BusyTimeout time.Duration `json:"busy_timeout" mapstructure:"busy_timeout"`
	GCInterval  time.Duration `json:"gc_interval" mapstructure:"gc_interval"` // negative disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Listen  string `json:"listen" mapstructure:"listen"`
	Path    string `json:"path" mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Filename:    sqlitestore.DefaultFilename,
			Table:       sqlitestore.DefaultTable,
			DefaultTTL:  sqlitestore.DefaultTTL,
			JournalMode: string(sqlitestore.DefaultJournal),
			Synchronous: string(sqlitestore.DefaultSyncMode),
			BusyTimeout: sqlitestore.DefaultBusyTimeout,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Listen:  "127.0.0.1:9464",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "sqlitestore",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}

// Options converts the store section into sqlitestore.Options. logger may be nil.
func (s StoreConfig) Options(logger *zerolog.Logger) (sqlitestore.Options, error) {
	opts := sqlitestore.Options{
		Dir:         s.Dir,
		Filename:    s.Filename,
		Table:       s.Table,
		DefaultTTL:  s.DefaultTTL,
		BusyTimeout: s.BusyTimeout,
		GCInterval:  s.GCInterval,
		Logger:      logger,
	}

	if s.JournalMode != "" {
		mode, err := sqlitestore.ParseJournalMode(s.JournalMode)
		if err != nil {
			return opts, err
		}
		opts.JournalMode = mode
	}
	if s.Synchronous != "" {
		mode, err := sqlitestore.ParseSynchronousMode(s.Synchronous)
		if err != nil {
			return opts, err
		}
		opts.Synchronous = mode
	}

	return opts, nil
}
