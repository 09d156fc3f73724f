package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SQLITESTORE_STORE_TABLE
const EnvPrefix = "SQLITESTORE"

// ErrNoConfigFile is returned by Watch when there is no file to watch
var ErrNoConfigFile = errors.New("no config file to watch")

// Loader handles configuration loading
type Loader struct {
	configPath string

	mu       sync.Mutex
	watching bool
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file. A missing file yields the defaults
// with environment overrides applied.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := l.newViper()

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return l.decode(v)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.decode(v)
}

func (l *Loader) newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func (l *Loader) decode(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply even without a file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("store.dir", cfg.Store.Dir)
	v.SetDefault("store.filename", cfg.Store.Filename)
	v.SetDefault("store.table", cfg.Store.Table)
	v.SetDefault("store.default_ttl", cfg.Store.DefaultTTL)
	v.SetDefault("store.journal_mode", cfg.Store.JournalMode)
	v.SetDefault("store.synchronous", cfg.Store.Synchronous)
	v.SetDefault("store.busy_timeout", cfg.Store.BusyTimeout)
	v.SetDefault("store.gc_interval", cfg.Store.GCInterval)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.service_name", cfg.Tracing.ServiceName)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Setup viper
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	// Durations are written in their string form so the file stays editable
	v.Set("store", map[string]any{
		"dir":          cfg.Store.Dir,
		"filename":     cfg.Store.Filename,
		"table":        cfg.Store.Table,
		"default_ttl":  cfg.Store.DefaultTTL.String(),
		"journal_mode": cfg.Store.JournalMode,
		"synchronous":  cfg.Store.Synchronous,
		"busy_timeout": cfg.Store.BusyTimeout.String(),
		"gc_interval":  cfg.Store.GCInterval.String(),
	})
	v.Set("logging", cfg.Logging)
	v.Set("metrics", cfg.Metrics)
	v.Set("tracing", cfg.Tracing)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Watch reloads the config whenever the file changes and hands the result to
// onChange. A reload that fails validation is reported through err and the
// previous config stays in effect for the caller.
func (l *Loader) Watch(onChange func(cfg *Config, err error)) error {
	configPath := l.GetConfigPath()
	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("%w: %s", ErrNoConfigFile, configPath)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watching {
		return nil
	}
	l.watching = true

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(l.Load())
	})
	v.WatchConfig()

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sqlitestore", "config.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
