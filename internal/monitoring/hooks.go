package monitoring

import (
	"context"
	"fmt"
	"time"
)

// ObservabilityHook defines hooks for monitoring serializer operations
type ObservabilityHook interface {
	// Called before an operation starts
	OnProcessStart(ctx context.Context, operation string, metadata map[string]any)

	// Called after an operation completes (success or failure)
	OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any)

	// Called when errors occur
	OnError(ctx context.Context, operation string, err error, metadata map[string]any)

	// Called once for every value replaced by a placeholder or dropped
	OnLoss(ctx context.Context, operation string, loss LossEvent)
}

// LossEvent describes a value that did not make it into the output.
type LossEvent struct {
	Path   string
	Type   string
	Repr   string
	Reason string
}

// NoOpObservabilityHook is a no-op implementation of ObservabilityHook
type NoOpObservabilityHook struct{}

func (n *NoOpObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
}
func (n *NoOpObservabilityHook) OnLoss(ctx context.Context, operation string, loss LossEvent) {}

// Logger is the subset of *slog.Logger the hooks use.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggingObservabilityHook logs all operations
type LoggingObservabilityHook struct {
	logger Logger
}

// NewLoggingObservabilityHook creates a new logging observability hook. A nil
// logger logs JSON to stdout at info level.
func NewLoggingObservabilityHook(logger Logger) *LoggingObservabilityHook {
	if logger == nil {
		logger = NewStructuredLogger(LoggerConfig{Level: LevelInfo, Component: "serializer"})
	}
	return &LoggingObservabilityHook{
		logger: logger,
	}
}

func (l *LoggingObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
	l.logger.Debug("operation started", "operation", operation, "metadata", metadata)
}

func (l *LoggingObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	if err != nil {
		l.logger.Error("operation failed", "operation", operation, "duration", duration, "error", err, "metadata", metadata)
		return
	}
	l.logger.Info("operation completed", "operation", operation, "duration", duration, "metadata", metadata)
}

func (l *LoggingObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	l.logger.Error("operation error", "operation", operation, "error", err, "metadata", metadata)
}

func (l *LoggingObservabilityHook) OnLoss(ctx context.Context, operation string, loss LossEvent) {
	l.logger.Warn("value lost",
		"operation", operation,
		"path", loss.Path,
		"type", loss.Type,
		"repr", loss.Repr,
		"reason", loss.Reason)
}

// MetricsObservabilityHook collects metrics for operations
type MetricsObservabilityHook struct {
	collector MetricsCollector
}

// NewMetricsObservabilityHook creates a new metrics observability hook
func NewMetricsObservabilityHook(collector MetricsCollector) *MetricsObservabilityHook {
	if collector == nil {
		collector = &NoOpMetricsCollector{}
	}
	return &MetricsObservabilityHook{
		collector: collector,
	}
}

func operationTags(operation string, metadata map[string]any) map[string]string {
	tags := map[string]string{"operation": operation}
	if codec, ok := metadata["codec"].(string); ok {
		tags["codec"] = codec
	}
	return tags
}

func (m *MetricsObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
	m.collector.IncrementCounter("miscutils.process.started", operationTags(operation, metadata))
}

func (m *MetricsObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	tags := operationTags(operation, metadata)
	if err != nil {
		tags["status"] = "error"
		m.collector.IncrementCounter("miscutils.process.failed", tags)
	} else {
		tags["status"] = "success"
		m.collector.IncrementCounter("miscutils.process.succeeded", tags)
	}
	m.collector.RecordTiming("miscutils.process.duration", duration, tags)

	if size, ok := metadata["bytes"].(int); ok {
		m.collector.RecordValue("miscutils.process.bytes", float64(size), operationTags(operation, metadata))
	}
}

func (m *MetricsObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	tags := map[string]string{
		"operation": operation,
		"error":     fmt.Sprintf("%T", err),
	}
	m.collector.IncrementCounter("miscutils.errors", tags)
}

func (m *MetricsObservabilityHook) OnLoss(ctx context.Context, operation string, loss LossEvent) {
	m.collector.IncrementCounter("miscutils.placeholders", map[string]string{"operation": operation})
}

// CompositeObservabilityHook combines multiple hooks
type CompositeObservabilityHook struct {
	hooks []ObservabilityHook
}

// NewCompositeObservabilityHook creates a new composite hook
func NewCompositeObservabilityHook(hooks ...ObservabilityHook) *CompositeObservabilityHook {
	return &CompositeObservabilityHook{
		hooks: hooks,
	}
}

func (c *CompositeObservabilityHook) OnProcessStart(ctx context.Context, operation string, metadata map[string]any) {
	for _, hook := range c.hooks {
		hook.OnProcessStart(ctx, operation, metadata)
	}
}

func (c *CompositeObservabilityHook) OnProcessComplete(ctx context.Context, operation string, duration time.Duration, err error, metadata map[string]any) {
	for _, hook := range c.hooks {
		hook.OnProcessComplete(ctx, operation, duration, err, metadata)
	}
}

func (c *CompositeObservabilityHook) OnError(ctx context.Context, operation string, err error, metadata map[string]any) {
	for _, hook := range c.hooks {
		hook.OnError(ctx, operation, err, metadata)
	}
}

func (c *CompositeObservabilityHook) OnLoss(ctx context.Context, operation string, loss LossEvent) {
	for _, hook := range c.hooks {
		hook.OnLoss(ctx, operation, loss)
	}
}
