package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/harun/sqlitestore/pkg/sqlitestore"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTable validates the session table name
func (v *Validator) ValidateTable(table string) error {
	if table == "" {
		return nil // Use default
	}
	return sqlitestore.ValidateTableName(table)
}

// ValidateJournalMode validates the journal_mode pragma value
func (v *Validator) ValidateJournalMode(mode string) error {
	if mode == "" {
		return nil
	}
	_, err := sqlitestore.ParseJournalMode(mode)
	return err
}

// ValidateSynchronous validates the synchronous pragma value
func (v *Validator) ValidateSynchronous(mode string) error {
	if mode == "" {
		return nil
	}
	_, err := sqlitestore.ParseSynchronousMode(mode)
	return err
}

// ValidateTTL validates the default session lifetime
func (v *Validator) ValidateTTL(ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("default_ttl must not be negative, got %s", ttl)
	}
	return nil
}

// ValidateBusyTimeout validates the engine busy timeout
func (v *Validator) ValidateBusyTimeout(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("busy_timeout must not be negative, got %s", d)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateListenAddr validates a host:port listen address
func (v *Validator) ValidateListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("metrics listen address cannot be empty")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid metrics listen address %q: %w", addr, err)
	}
	return nil
}

// ValidateSampleRatio validates the trace sampling ratio
func (v *Validator) ValidateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1, got %f", ratio)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate store
	if err := v.ValidateTable(cfg.Store.Table); err != nil {
		errors = append(errors, fmt.Errorf("store.table: %w", err))
	}
	if err := v.ValidateJournalMode(cfg.Store.JournalMode); err != nil {
		errors = append(errors, fmt.Errorf("store.journal_mode: %w", err))
	}
	if err := v.ValidateSynchronous(cfg.Store.Synchronous); err != nil {
		errors = append(errors, fmt.Errorf("store.synchronous: %w", err))
	}
	if err := v.ValidateTTL(cfg.Store.DefaultTTL); err != nil {
		errors = append(errors, fmt.Errorf("store: %w", err))
	}
	if err := v.ValidateBusyTimeout(cfg.Store.BusyTimeout); err != nil {
		errors = append(errors, fmt.Errorf("store: %w", err))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	// Validate metrics
	if cfg.Metrics.Enabled {
		if err := v.ValidateListenAddr(cfg.Metrics.Listen); err != nil {
			errors = append(errors, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errors = append(errors, fmt.Errorf("metrics path must start with /, got %q", cfg.Metrics.Path))
		}
	}

	// Validate tracing
	if err := v.ValidateSampleRatio(cfg.Tracing.SampleRatio); err != nil {
		errors = append(errors, err)
	}

	return errors
}
