package miscutils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_MetricsCollector(t *testing.T) {
	ctx := context.Background()
	metrics := NewInMemoryMetricsCollector()
	s, store := newSerializer(t, WithMetricsCollector(metrics))

	_, err := s.Serialize(ctx, map[string]any{"n": 1})
	require.NoError(t, err)
	_, err = s.Serialize(ctx, map[string]any{"sock": &socket{fd: 4}})
	require.NoError(t, err)

	tags := map[string]string{"codec": "pickle"}
	assert.Equal(t, int64(1), metrics.GetCounter(MetricEncodeDirect, tags))
	assert.Equal(t, int64(1), metrics.GetCounter(MetricEncodeRepaired, tags))
	assert.Equal(t, int64(0), metrics.GetCounter(MetricEncodeFallback, tags))

	succeeded := map[string]string{"operation": OpSerialize, "codec": "pickle", "status": "success"}
	assert.Equal(t, int64(2), metrics.GetCounter("miscutils.process.succeeded", succeeded))
	assert.Len(t, metrics.GetTimings("miscutils.process.duration", succeeded), 2)
	assert.Equal(t, int64(1), metrics.SumCounter("miscutils.placeholders"))

	store.ReadErr = errors.New("gone")
	_, err = s.Deserialize(ctx)
	require.Error(t, err)
	assert.Equal(t, int64(1), metrics.SumCounter("miscutils.process.failed"))
	assert.Equal(t, int64(1), metrics.SumCounter("miscutils.errors"))
}

func TestSerializer_PrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, _ := newSerializer(t, WithMetricsCollector(NewPrometheusCollector(reg, "app")))

	for i := 0; i < 3; i++ {
		_, _, err := s.ToBytes([]any{i, &socket{fd: i}})
		require.NoError(t, err)
	}

	count, err := testutil.GatherAndCount(reg, "app_miscutils_serialize_repaired_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP app_miscutils_placeholders_total Count of miscutils.placeholders
# TYPE app_miscutils_placeholders_total counter
app_miscutils_placeholders_total{operation="to_bytes"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "app_miscutils_placeholders_total"))
}

func TestSerializer_LoggerReceivesLosses(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s, _ := newSerializer(t, WithLogger(logger))

	_, _, err := s.ToBytes(map[string]any{"sock": &socket{fd: 7, family: "AF_UNIX"}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, `$["sock"]`, record["path"])
	assert.Contains(t, record["repr"], "fd=7")
}

func TestLoggingObservabilityHook_Root(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingObservabilityHook(slog.New(slog.NewTextHandler(&buf, nil)))
	s, _ := newSerializer(t, WithObservabilityHook(hook))

	_, _, err := s.ToBytes(1)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), OpToBytes)
}
