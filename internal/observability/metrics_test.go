package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m := getMetrics()
	table := "metrics_op_table"

	RecordOperation(table, "get", 5*time.Millisecond, true)
	RecordOperation(table, "get", time.Millisecond, false)
	RecordOperation(table, "get", time.Millisecond, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operationTotal.WithLabelValues(table, "get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationTotal.WithLabelValues(table, "get", "error")))
}

func TestRecordSweep(t *testing.T) {
	m := getMetrics()
	table := "metrics_gc_table"

	RecordSweep(table, time.Millisecond, 3, nil)
	RecordSweep(table, time.Millisecond, 0, nil)
	RecordSweep(table, time.Millisecond, 0, errors.New("locked"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gcSweepTotal.WithLabelValues(table, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gcSweepTotal.WithLabelValues(table, "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.gcReclaimedTotal.WithLabelValues(table)))
}

func TestGaugesAndDecodeErrors(t *testing.T) {
	m := getMetrics()
	table := "metrics_gauge_table"

	SetActiveSessions(table, 7)
	SetActiveSessions(table, 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.activeSessions.WithLabelValues(table)))

	RecordDecodeError(table)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrorsTotal.WithLabelValues(table)))

	before := testutil.ToFloat64(m.openStores)
	StoreOpened()
	StoreOpened()
	StoreClosed()
	assert.Equal(t, before+1, testutil.ToFloat64(m.openStores))
	StoreClosed()
}

func TestMetricsHandler(t *testing.T) {
	RecordOperation("metrics_http_table", "set", time.Millisecond, true)

	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sqlitestore_operations_total{op="set",status="success",table="metrics_http_table"}`)
}
