package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	operationTotal    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	decodeErrorsTotal *prometheus.CounterVec

	activeSessions *prometheus.GaugeVec

	gcSweepTotal     *prometheus.CounterVec
	gcReclaimedTotal *prometheus.CounterVec
	gcSweepDuration  prometheus.Histogram

	openStores prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			operationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sqlitestore_operations_total",
					Help: "Total store operations by table, operation and status.",
				},
				[]string{"table", "op", "status"},
			),
			operationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sqlitestore_operation_duration_seconds",
					Help:    "Store operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"table", "op"},
			),
			decodeErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sqlitestore_decode_errors_total",
					Help: "Total stored payloads that failed to decode.",
				},
				[]string{"table"},
			),
			activeSessions: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "sqlitestore_active_sessions",
					Help: "Active session count observed by the last length call.",
				},
				[]string{"table"},
			),
			gcSweepTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sqlitestore_gc_sweeps_total",
					Help: "Total garbage collection sweeps by status.",
				},
				[]string{"table", "status"},
			),
			gcReclaimedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sqlitestore_gc_reclaimed_rows_total",
					Help: "Total expired rows removed by garbage collection.",
				},
				[]string{"table"},
			),
			gcSweepDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sqlitestore_gc_sweep_duration_seconds",
					Help:    "Garbage collection sweep duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			openStores: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sqlitestore_open_stores",
					Help: "Number of store instances currently open.",
				},
			),
		}

		prometheus.MustRegister(
			m.operationTotal,
			m.operationDuration,
			m.decodeErrorsTotal,
			m.activeSessions,
			m.gcSweepTotal,
			m.gcReclaimedTotal,
			m.gcSweepDuration,
			m.openStores,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default registry, including store metrics.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordOperation(table, op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.operationTotal.WithLabelValues(table, op, status).Inc()
	m.operationDuration.WithLabelValues(table, op).Observe(duration.Seconds())
}

func RecordDecodeError(table string) {
	getMetrics().decodeErrorsTotal.WithLabelValues(table).Inc()
}

func SetActiveSessions(table string, count int) {
	getMetrics().activeSessions.WithLabelValues(table).Set(float64(count))
}

func RecordSweep(table string, duration time.Duration, reclaimed int64, err error) {
	m := getMetrics()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.gcSweepTotal.WithLabelValues(table, status).Inc()
	m.gcSweepDuration.Observe(duration.Seconds())
	if reclaimed > 0 {
		m.gcReclaimedTotal.WithLabelValues(table).Add(float64(reclaimed))
	}
}

func StoreOpened() {
	getMetrics().openStores.Inc()
}

func StoreClosed() {
	getMetrics().openStores.Dec()
}
