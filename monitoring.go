package miscutils

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hengadev/miscutils/internal/monitoring"
)

// MetricsCollector receives counters, gauges and timings.
type MetricsCollector = monitoring.MetricsCollector

// ObservabilityHook is notified around every operation and once per lost
// value.
type ObservabilityHook = monitoring.ObservabilityHook

// LossEvent is what ObservabilityHook.OnLoss receives.
type LossEvent = monitoring.LossEvent

// InMemoryMetricsCollector keeps metrics in memory.
type InMemoryMetricsCollector = monitoring.InMemoryMetricsCollector

// NewInMemoryMetricsCollector returns an empty in-memory collector.
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return monitoring.NewInMemoryMetricsCollector()
}

// NewPrometheusCollector returns a collector registering its metrics with
// reg under namespace. A nil reg uses the default Prometheus registerer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) MetricsCollector {
	return monitoring.NewPrometheusCollector(reg, namespace)
}

// NewLoggingObservabilityHook returns a hook logging through logger, or a
// JSON logger on stdout when logger is nil.
func NewLoggingObservabilityHook(logger monitoring.Logger) ObservabilityHook {
	return monitoring.NewLoggingObservabilityHook(logger)
}

// Operation names reported to hooks and metrics.
const (
	OpSerialize   = "serialize"
	OpDeserialize = "deserialize"
	OpToBytes     = "to_bytes"
	OpFromBytes   = "from_bytes"
)

// Metric names the serializer records besides those of the metrics hook.
const (
	MetricEncodeDirect   = "miscutils.serialize.direct"
	MetricEncodeRepaired = "miscutils.serialize.repaired"
	MetricEncodeFallback = "miscutils.serialize.fallback"
)
