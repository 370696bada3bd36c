package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds the Prometheus metrics for the resolver core.
// Uses a custom registry — no global state. All record methods are nil-safe
// so callers can hold a nil collector when metrics are disabled.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// RPC wire client metrics.
	RPCRequestsTotal   *prometheus.CounterVec
	RPCRequestDuration *prometheus.HistogramVec

	// Secret resolution metrics.
	SecretResolutionsTotal *prometheus.CounterVec
	SecretWritesTotal      *prometheus.CounterVec

	// Config resolution metrics.
	ConfigLoadsTotal  *prometheus.CounterVec
	ConfigWritesTotal *prometheus.CounterVec
	CachedProviders   prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		RPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openllm",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total JSON-RPC requests by method and status.",
		}, []string{"method", "status"}),

		RPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openllm",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),

		SecretResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openllm",
			Subsystem: "secrets",
			Name:      "resolutions_total",
			Help:      "Total secret resolutions by source and status.",
		}, []string{"source", "status"}),

		SecretWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openllm",
			Subsystem: "secrets",
			Name:      "writes_total",
			Help:      "Total secret writes by destination and status.",
		}, []string{"destination", "status"}),

		ConfigLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openllm",
			Subsystem: "config",
			Name:      "loads_total",
			Help:      "Total provider cache loads by source.",
		}, []string{"source"}),

		ConfigWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openllm",
			Subsystem: "config",
			Name:      "writes_total",
			Help:      "Total provider config writes by destination and status.",
		}, []string{"destination", "status"}),

		CachedProviders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "openllm",
			Subsystem: "config",
			Name:      "cached_providers",
			Help:      "Providers currently held in the global cache.",
		}),
	}

	reg.MustRegister(
		m.RPCRequestsTotal,
		m.RPCRequestDuration,
		m.SecretResolutionsTotal,
		m.SecretWritesTotal,
		m.ConfigLoadsTotal,
		m.ConfigWritesTotal,
		m.CachedProviders,
	)

	return m
}

// RecordRPCRequest records one JSON-RPC round-trip.
func (m *MetricsCollector) RecordRPCRequest(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.RPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSecretResolution records the outcome of one secret lookup.
func (m *MetricsCollector) RecordSecretResolution(source, status string) {
	if m == nil {
		return
	}
	m.SecretResolutionsTotal.WithLabelValues(source, status).Inc()
}

// RecordSecretWrite records the outcome of one secret write or delete.
func (m *MetricsCollector) RecordSecretWrite(destination, status string) {
	if m == nil {
		return
	}
	m.SecretWritesTotal.WithLabelValues(destination, status).Inc()
}

// RecordConfigLoad records one provider-cache load from a source.
func (m *MetricsCollector) RecordConfigLoad(source string) {
	if m == nil {
		return
	}
	m.ConfigLoadsTotal.WithLabelValues(source).Inc()
}

// RecordConfigWrite records the outcome of one provider-config write.
func (m *MetricsCollector) RecordConfigWrite(destination, status string) {
	if m == nil {
		return
	}
	m.ConfigWritesTotal.WithLabelValues(destination, status).Inc()
}

// SetCachedProviders updates the cached-provider gauge.
func (m *MetricsCollector) SetCachedProviders(n int) {
	if m == nil {
		return
	}
	m.CachedProviders.Set(float64(n))
}
