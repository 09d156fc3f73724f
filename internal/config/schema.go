package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// durationPattern matches Go duration strings such as "30m", "1h30m" or "-1s"
const durationPattern = `^-?([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// fileSchema describes the on-disk JSON config. Durations are strings.
const fileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "store": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string"},
        "filename": {"type": "string", "minLength": 1},
        "table": {"type": "string", "pattern": "^[A-Za-z_][A-Za-z0-9_]*$", "maxLength": 64},
        "default_ttl": {"type": "string", "pattern": "` + durationPattern + `"},
        "journal_mode": {"type": "string"},
        "synchronous": {"type": "string"},
        "busy_timeout": {"type": "string", "pattern": "` + durationPattern + `"},
        "gc_interval": {"type": "string", "pattern": "` + durationPattern + `"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "pretty": {"type": "boolean"},
        "redaction": {"type": "boolean"},
        "audit_file": {"type": "string"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "listen": {"type": "string"},
        "path": {"type": "string", "pattern": "^/"}
      }
    },
    "tracing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "service_name": {"type": "string"},
        "sample_ratio": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(fileSchema))
	})
	return schema, schemaErr
}

// ValidateDocument checks raw config file contents against the file schema
func ValidateDocument(data []byte) error {
	s, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("config schema validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
