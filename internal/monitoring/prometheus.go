package monitoring

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes collected metrics through a Prometheus
// registerer. Vectors are created on first use; their label names are the
// tag keys seen on that first call.
type PrometheusCollector struct {
	factory   promauto.Factory
	namespace string

	mu         sync.Mutex
	counters   map[string]*labeled[*prometheus.CounterVec]
	gauges     map[string]*labeled[*prometheus.GaugeVec]
	histograms map[string]*labeled[*prometheus.HistogramVec]
}

type labeled[V any] struct {
	vec    V
	labels []string
}

// NewPrometheusCollector registers metrics with reg under namespace. A nil
// reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusCollector{
		factory:    promauto.With(reg),
		namespace:  namespace,
		counters:   make(map[string]*labeled[*prometheus.CounterVec]),
		gauges:     make(map[string]*labeled[*prometheus.GaugeVec]),
		histograms: make(map[string]*labeled[*prometheus.HistogramVec]),
	}
}

func (p *PrometheusCollector) IncrementCounter(name string, tags map[string]string) {
	p.IncrementCounterBy(name, 1, tags)
}

func (p *PrometheusCollector) IncrementCounterBy(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		labels := labelNames(tags)
		c = &labeled[*prometheus.CounterVec]{
			vec: p.factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: p.namespace,
				Name:      metricName(name) + "_total",
				Help:      "Count of " + name,
			}, labels),
			labels: labels,
		}
		p.counters[name] = c
	}
	p.mu.Unlock()
	c.vec.WithLabelValues(labelValues(c.labels, tags)...).Add(float64(value))
}

func (p *PrometheusCollector) SetGauge(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		labels := labelNames(tags)
		g = &labeled[*prometheus.GaugeVec]{
			vec: p.factory.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: p.namespace,
				Name:      metricName(name),
				Help:      "Current " + name,
			}, labels),
			labels: labels,
		}
		p.gauges[name] = g
	}
	p.mu.Unlock()
	g.vec.WithLabelValues(labelValues(g.labels, tags)...).Set(value)
}

func (p *PrometheusCollector) RecordTiming(name string, duration time.Duration, tags map[string]string) {
	p.observe(name+".seconds", duration.Seconds(), prometheus.DefBuckets, tags)
}

func (p *PrometheusCollector) RecordValue(name string, value float64, tags map[string]string) {
	p.observe(name, value, prometheus.ExponentialBuckets(64, 4, 10), tags)
}

func (p *PrometheusCollector) observe(name string, value float64, buckets []float64, tags map[string]string) {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		labels := labelNames(tags)
		h = &labeled[*prometheus.HistogramVec]{
			vec: p.factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: p.namespace,
				Name:      metricName(name),
				Help:      "Distribution of " + name,
				Buckets:   buckets,
			}, labels),
			labels: labels,
		}
		p.histograms[name] = h
	}
	p.mu.Unlock()
	h.vec.WithLabelValues(labelValues(h.labels, tags)...).Observe(value)
}

// Flush is a no-op; Prometheus pulls.
func (p *PrometheusCollector) Flush() error { return nil }

func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, metricName(k))
	}
	slices.Sort(names)
	return names
}

// labelValues orders tag values by labels. Missing tags become empty
// values; tags without a label are dropped.
func labelValues(labels []string, tags map[string]string) []string {
	byLabel := make(map[string]string, len(tags))
	for k, v := range tags {
		byLabel[metricName(k)] = v
	}
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = byLabel[l]
	}
	return values
}
