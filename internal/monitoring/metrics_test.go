package monitoring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpMetricsCollector(t *testing.T) {
	collector := &NoOpMetricsCollector{}
	tags := map[string]string{"test": "value"}

	collector.IncrementCounter("test_counter", tags)
	collector.IncrementCounterBy("test_counter", 5, tags)
	collector.SetGauge("test_gauge", 42.5, tags)
	collector.RecordTiming("test_timing", time.Millisecond, tags)
	collector.RecordValue("test_value", 3.14, tags)

	assert.NoError(t, collector.Flush())
}

func TestInMemoryMetricsCollector_Counters(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	tags := map[string]string{"env": "test"}

	collector.IncrementCounter("requests", tags)
	assert.Equal(t, int64(1), collector.GetCounter("requests", tags))

	collector.IncrementCounter("requests", tags)
	collector.IncrementCounterBy("requests", 3, tags)
	assert.Equal(t, int64(5), collector.GetCounter("requests", tags))

	assert.Zero(t, collector.GetCounter("requests", nil))
	assert.Zero(t, collector.GetCounter("missing", tags))
}

func TestInMemoryMetricsCollector_SetGauge(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	tags := map[string]string{"region": "us-east-1"}

	collector.SetGauge("cache_entries", 75, tags)
	assert.Equal(t, 75.0, collector.GetGauge("cache_entries", tags))

	collector.SetGauge("cache_entries", 82, tags)
	assert.Equal(t, 82.0, collector.GetGauge("cache_entries", tags))
}

func TestInMemoryMetricsCollector_TimingsAndValues(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	tags := map[string]string{"operation": "serialize"}

	collector.RecordTiming("duration", 150*time.Millisecond, tags)
	collector.RecordTiming("duration", 200*time.Millisecond, tags)
	assert.Equal(t, []time.Duration{150 * time.Millisecond, 200 * time.Millisecond}, collector.GetTimings("duration", tags))

	collector.RecordValue("bytes", 1250, tags)
	collector.RecordValue("bytes", 1500, tags)
	assert.Equal(t, []float64{1250, 1500}, collector.GetValues("bytes", tags))

	// Returned slices are copies.
	got := collector.GetValues("bytes", tags)
	got[0] = 0
	assert.Equal(t, 1250.0, collector.GetValues("bytes", tags)[0])
}

func TestKeyWithTags(t *testing.T) {
	tests := []struct {
		name       string
		metricName string
		tags       map[string]string
		expected   string
	}{
		{name: "no tags", metricName: "test_metric", expected: "test_metric"},
		{name: "empty tags", metricName: "test_metric", tags: map[string]string{}, expected: "test_metric"},
		{name: "single tag", metricName: "requests", tags: map[string]string{"env": "prod"}, expected: "requests,env=prod"},
		{
			name:       "multiple tags sorted",
			metricName: "latency",
			tags:       map[string]string{"env": "prod", "service": "api", "region": "us-east-1"},
			expected:   "latency,env=prod,region=us-east-1,service=api",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, keyWithTags(tt.metricName, tt.tags))
		})
	}
}

func TestInMemoryMetricsCollector_SumCounter(t *testing.T) {
	collector := NewInMemoryMetricsCollector()

	collector.IncrementCounter("requests", map[string]string{"env": "prod"})
	collector.IncrementCounter("requests", map[string]string{"env": "dev"})
	collector.IncrementCounter("requests", map[string]string{"env": "prod"})
	collector.IncrementCounter("requests", nil)
	collector.IncrementCounter("requests_other", nil)

	assert.Equal(t, int64(2), collector.GetCounter("requests", map[string]string{"env": "prod"}))
	assert.Equal(t, int64(1), collector.GetCounter("requests", map[string]string{"env": "dev"}))
	assert.Equal(t, int64(4), collector.SumCounter("requests"))
}

func TestInMemoryMetricsCollector_Reset(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	collector.IncrementCounter("test", nil)
	collector.SetGauge("memory", 50, nil)
	assert.NoError(t, collector.Flush())
	assert.Equal(t, int64(1), collector.GetCounter("test", nil))

	collector.Reset()
	assert.Zero(t, collector.GetCounter("test", nil))
	assert.Zero(t, collector.GetGauge("memory", nil))
}

func TestInMemoryMetricsCollector_ConcurrentAccess(t *testing.T) {
	collector := NewInMemoryMetricsCollector()
	tags := map[string]string{"worker": "test"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("concurrent_test", tags)
			collector.RecordValue("concurrent_values", 1, tags)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), collector.GetCounter("concurrent_test", tags))
	assert.Len(t, collector.GetValues("concurrent_values", tags), 50)
}
