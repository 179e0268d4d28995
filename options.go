package miscutils

import (
	"fmt"
	"log/slog"

	"github.com/hengadev/miscutils/internal/serialization"
)

// Option configures a Serializer.
type Option func(s *Serializer) error

// WithCodec replaces the codec. It takes precedence over WithCodecType.
func WithCodec(codec Codec) Option {
	return func(s *Serializer) error {
		if codec == nil {
			return newConfigurationError("codec cannot be nil")
		}
		s.codec = codec
		return nil
	}
}

// WithCodecType selects one of the built-in codecs.
func WithCodecType(t CodecType) Option {
	return func(s *Serializer) error {
		if !t.IsValid() {
			_, err := serialization.ParseCodecType(string(t))
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		s.codecType = t
		return nil
	}
}

// WithRegistry resolves interface types through reg instead of the default
// registry.
func WithRegistry(reg *Registry) Option {
	return func(s *Serializer) error {
		if reg == nil {
			return newConfigurationError("registry cannot be nil")
		}
		if err := registerBuiltins(reg); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		s.registry = reg
		return nil
	}
}

// WithTransform seals bytes before they are stored and opens them after they
// are read.
func WithTransform(t Transform) Option {
	return func(s *Serializer) error {
		if t == nil {
			return newConfigurationError("transform cannot be nil")
		}
		s.transform = t
		return nil
	}
}

// WithLogger sets the logger. The repair path logs at debug level and every
// lost value at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Serializer) error {
		if logger == nil {
			return newConfigurationError("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithObservabilityHook adds a hook. It may be given more than once.
func WithObservabilityHook(hook ObservabilityHook) Option {
	return func(s *Serializer) error {
		if hook == nil {
			return newConfigurationError("observability hook cannot be nil")
		}
		s.hooks = append(s.hooks, hook)
		return nil
	}
}

// WithMetricsCollector records operation counters, timings and placeholder
// counts in collector.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Serializer) error {
		if collector == nil {
			return newConfigurationError("metrics collector cannot be nil")
		}
		s.metrics = collector
		return nil
	}
}

// WithMaxDepth bounds how deeply a graph may nest, for both the codec and
// the repair walk.
func WithMaxDepth(depth int) Option {
	return func(s *Serializer) error {
		if depth <= 0 {
			return newConfigurationError("max depth must be positive, got %d", depth)
		}
		s.maxDepth = depth
		return nil
	}
}
