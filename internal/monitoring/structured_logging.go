package monitoring

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel accepts debug, info, warn and error in any case.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level '%s': must be one of [debug, info, warn, error]", s)
}

// LogFormat represents the output format for logs
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatText
	FormatConsole
)

// ParseLogFormat accepts json, text and console.
func ParseLogFormat(s string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	case "console":
		return FormatConsole, nil
	}
	return FormatJSON, fmt.Errorf("invalid log format '%s': must be one of [json, text, console]", s)
}

// StructuredLogger is an *slog.Logger carrying the service and component
// fields on every record.
type StructuredLogger struct {
	*slog.Logger
	level LogLevel
}

// LoggerConfig configures the structured logger
type LoggerConfig struct {
	Level     LogLevel
	Format    LogFormat
	Output    io.Writer
	Component string
	Fields    map[string]any
}

// NewStructuredLogger creates a new structured logger with the given configuration
func NewStructuredLogger(config LoggerConfig) *StructuredLogger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.Level == LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	case FormatConsole:
		handler = NewConsoleHandler(config.Output, opts)
	default:
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	attrs := []any{"service", "miscutils"}
	if config.Component != "" {
		attrs = append(attrs, "component", config.Component)
	}
	for k, v := range config.Fields {
		attrs = append(attrs, k, v)
	}

	return &StructuredLogger{
		Logger: slog.New(handler).With(attrs...),
		level:  config.Level,
	}
}

// Level reports the configured minimum level.
func (l *StructuredLogger) Level() LogLevel { return l.level }

// WithFields returns a new logger with additional fields
func (l *StructuredLogger) WithFields(fields map[string]any) *StructuredLogger {
	args := make([]any, 0, 2*len(fields))
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &StructuredLogger{Logger: l.Logger.With(args...), level: l.level}
}

// LogOperation logs a finished serializer operation with standard fields.
func (l *StructuredLogger) LogOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	args := []any{
		"operation", operation,
		"duration", duration.String(),
		"duration_ms", duration.Milliseconds(),
	}
	if err != nil {
		args = append(args, "error", err.Error(), "error_type", fmt.Sprintf("%T", err))
		l.ErrorContext(ctx, "operation failed", args...)
		return
	}
	l.InfoContext(ctx, "operation completed", args...)
}

// ConsoleHandler provides colorized console output
type ConsoleHandler struct {
	handler slog.Handler
	output  io.Writer
	attrs   []slog.Attr
}

// NewConsoleHandler creates a new console handler
func NewConsoleHandler(output io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	return &ConsoleHandler{
		handler: slog.NewTextHandler(output, opts),
		output:  output,
	}
}

func (h *ConsoleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *ConsoleHandler) Handle(ctx context.Context, record slog.Record) error {
	var levelStr string
	switch {
	case record.Level >= slog.LevelError:
		levelStr = "\033[31mERROR\033[0m"
	case record.Level >= slog.LevelWarn:
		levelStr = "\033[33mWARN\033[0m"
	case record.Level >= slog.LevelInfo:
		levelStr = "\033[32mINFO\033[0m"
	default:
		levelStr = "\033[36mDEBUG\033[0m"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", record.Time.Format("15:04:05.000"), levelStr, record.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
	}
	record.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.output, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ConsoleHandler{
		handler: h.handler.WithAttrs(attrs),
		output:  h.output,
		attrs:   append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	return &ConsoleHandler{
		handler: h.handler.WithGroup(name),
		output:  h.output,
		attrs:   h.attrs,
	}
}

// NewProductionLogger reads MISCUTILS_LOG_LEVEL and MISCUTILS_LOG_FORMAT.
// Unrecognized values fall back to info and json.
func NewProductionLogger(component string) *StructuredLogger {
	level, _ := ParseLogLevel(os.Getenv("MISCUTILS_LOG_LEVEL"))
	format, _ := ParseLogFormat(os.Getenv("MISCUTILS_LOG_FORMAT"))

	return NewStructuredLogger(LoggerConfig{
		Level:     level,
		Format:    format,
		Component: component,
		Output:    os.Stderr,
		Fields: map[string]any{
			"pid": os.Getpid(),
		},
	})
}

// NewDevelopmentLogger logs colorized debug output to stderr.
func NewDevelopmentLogger(component string) *StructuredLogger {
	return NewStructuredLogger(LoggerConfig{
		Level:     LevelDebug,
		Format:    FormatConsole,
		Component: component,
		Output:    os.Stderr,
	})
}
