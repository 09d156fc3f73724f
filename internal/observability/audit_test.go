package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestAuditLoggerRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	audit := NewAuditLogger(buf)

	audit.Record(context.Background(), AuditEvent{
		Type:     "store",
		Actor:    "cli",
		Action:   "clear",
		Status:   "success",
		Metadata: map[string]interface{}{"table": "sessions"},
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "store", line["type"])
	assert.Equal(t, "cli", line["actor"])
	assert.Equal(t, "clear", line["action"])
	assert.Equal(t, "success", line["status"])
	assert.Equal(t, map[string]interface{}{"table": "sessions"}, line["metadata"])
}

func TestAuditLoggerSpanEvent(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "purge")
	buf := &bytes.Buffer{}
	NewAuditLogger(buf).Record(ctx, AuditEvent{Type: "store", Action: "purge", Status: "success"})
	span.End()

	assert.Contains(t, buf.String(), span.SpanContext().TraceID().String())

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "purge", ended[0].Events()[0].Name)
}

func TestInitAuditLoggerAndRecordStoreAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() {
		auditMu.Lock()
		if auditInst != nil {
			_ = auditInst.Close()
		}
		auditInst = nil
		auditMu.Unlock()
	})

	RecordStoreAudit(context.Background(), "destroy", "cli", nil, map[string]interface{}{"id": "abc"})
	RecordStoreAudit(context.Background(), "purge", "cli", errors.New("busy"), nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var failed map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &failed))
	assert.Equal(t, "failure", failed["status"])
	assert.Equal(t, map[string]interface{}{"error": "busy"}, failed["metadata"])
}

func TestInitAuditLoggerBadPath(t *testing.T) {
	err := InitAuditLogger(filepath.Join(t.TempDir(), "missing", "audit.log"))
	assert.Error(t, err)
}
