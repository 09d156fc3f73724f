package config

import (
	"testing"
	"time"

	"github.com/harun/sqlitestore/pkg/sqlitestore"
	"github.com/stretchr/testify/assert"
)

func TestValidateTable(t *testing.T) {
	v := NewValidator()

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, v.ValidateTable("web_sessions"))
	})

	t.Run("empty uses default", func(t *testing.T) {
		assert.NoError(t, v.ValidateTable(""))
	})

	t.Run("invalid", func(t *testing.T) {
		err := v.ValidateTable(`x"; DROP TABLE y; --`)
		assert.ErrorIs(t, err, sqlitestore.ErrInvalidTableName)
	})
}

func TestValidatePragmaModes(t *testing.T) {
	v := NewValidator()

	for _, mode := range []string{"", "wal", "DELETE", "Truncate", "persist", "memory", "off"} {
		assert.NoError(t, v.ValidateJournalMode(mode), mode)
	}
	assert.Error(t, v.ValidateJournalMode("rollback"))

	for _, mode := range []string{"", "off", "NORMAL", "Full", "extra"} {
		assert.NoError(t, v.ValidateSynchronous(mode), mode)
	}
	assert.Error(t, v.ValidateSynchronous("sometimes"))
}

func TestValidateDurations(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateTTL(0))
	assert.NoError(t, v.ValidateTTL(time.Hour))
	assert.Error(t, v.ValidateTTL(-time.Hour))

	assert.NoError(t, v.ValidateBusyTimeout(0))
	assert.Error(t, v.ValidateBusyTimeout(-time.Millisecond))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			assert.NoError(t, v.ValidateLogLevel(level))
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		err := v.ValidateLogLevel("trace")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestValidateListenAddr(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateListenAddr("127.0.0.1:9464"))
	assert.NoError(t, v.ValidateListenAddr(":9464"))
	assert.Error(t, v.ValidateListenAddr(""))
	assert.Error(t, v.ValidateListenAddr("localhost"))
}

func TestValidateSampleRatio(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSampleRatio(0))
	assert.NoError(t, v.ValidateSampleRatio(0.25))
	assert.NoError(t, v.ValidateSampleRatio(1))
	assert.Error(t, v.ValidateSampleRatio(-0.1))
	assert.Error(t, v.ValidateSampleRatio(1.5))
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{name: "empty object", doc: `{}`, valid: true},
		{name: "full", doc: `{
			"store": {"dir": "/tmp", "filename": "s.db", "table": "s", "default_ttl": "1h30m",
				"journal_mode": "WAL", "synchronous": "FULL", "busy_timeout": "250ms", "gc_interval": "-1s"},
			"logging": {"level": "warn", "file": "/tmp/s.log", "pretty": false, "redaction": true, "audit_file": ""},
			"metrics": {"enabled": true, "listen": ":9464", "path": "/metrics"},
			"tracing": {"enabled": true, "service_name": "svc", "sample_ratio": 0.5}
		}`, valid: true},
		{name: "unknown section", doc: `{"telegram": {}}`},
		{name: "unknown store key", doc: `{"store": {"ttl": "1h"}}`},
		{name: "numeric duration", doc: `{"store": {"default_ttl": 3600}}`},
		{name: "bad duration", doc: `{"store": {"gc_interval": "hourly"}}`},
		{name: "bad table", doc: `{"store": {"table": "1table"}}`},
		{name: "bad level", doc: `{"logging": {"level": "loud"}}`},
		{name: "bad ratio", doc: `{"tracing": {"sample_ratio": 3}}`},
		{name: "not an object", doc: `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument([]byte(tt.doc))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
