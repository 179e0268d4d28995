package miscutils

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hengadev/errsx"

	"github.com/hengadev/miscutils/internal/monitoring"
	"github.com/hengadev/miscutils/internal/serialization"
)

// Config holds the settings a Serializer, Cache or Secrets can be built
// from. It carries only data; load it from the environment, a YAML file or
// code, then call Validate.
//
// Example:
//
//	cfg, err := miscutils.LoadConfigFile("miscutils.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := miscutils.NewSerializerFromConfig(store, cfg)
type Config struct {
	// Codec is "pickle" (default) or "json".
	Codec string `yaml:"codec"`

	// MaxDepth bounds graph nesting. Zero keeps the built-in limits.
	MaxDepth int `yaml:"max_depth"`

	// LogLevel is debug, info (default), warn or error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is json (default), text or console.
	LogFormat string `yaml:"log_format"`

	// LogOutput receives log records. Defaults to stderr.
	LogOutput io.Writer `yaml:"-"`

	// CacheTTL is the lifetime of freshly created cache contents. Zero
	// never expires.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// PasswordFile is where Secrets reads its password. Empty means
	// $HOME/secrets.txt.
	PasswordFile string `yaml:"password_file"`

	// Salt is the Secrets key derivation salt.
	Salt string `yaml:"salt"`
}

// Validate checks every field, reporting all problems at once as an
// errsx.Map, and fills in defaults.
func (c *Config) Validate() error {
	var errs errsx.Map

	if c.Codec == "" {
		c.Codec = DefaultCodec
	}
	if _, err := serialization.ParseCodecType(c.Codec); err != nil {
		errs.Set("codec", err)
	}

	if c.MaxDepth < 0 {
		errs.Set("max_depth", newConfigurationError("max depth cannot be negative, got %d", c.MaxDepth))
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := monitoring.ParseLogLevel(c.LogLevel); err != nil {
		errs.Set("log_level", err)
	}

	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if _, err := monitoring.ParseLogFormat(c.LogFormat); err != nil {
		errs.Set("log_format", err)
	}

	if c.CacheTTL < 0 {
		errs.Set("cache_ttl", newConfigurationError("cache ttl cannot be negative, got %s", c.CacheTTL))
	}

	return errs.AsError()
}

// Logger builds the slog logger the config describes.
func (c Config) Logger() *slog.Logger {
	level, _ := monitoring.ParseLogLevel(c.LogLevel)
	format, _ := monitoring.ParseLogFormat(c.LogFormat)
	out := c.LogOutput
	if out == nil {
		out = os.Stderr
	}
	return monitoring.NewStructuredLogger(monitoring.LoggerConfig{
		Level:     level,
		Format:    format,
		Output:    out,
		Component: "serializer",
	}).Logger
}

// SerializerOptions translates the config into Serializer options.
func (c Config) SerializerOptions() []Option {
	opts := []Option{
		WithCodecType(CodecType(c.Codec)),
		WithLogger(c.Logger()),
	}
	if c.MaxDepth > 0 {
		opts = append(opts, WithMaxDepth(c.MaxDepth))
	}
	return opts
}

// NewSerializerFromConfig validates cfg and builds a Serializer over store.
// opts are applied after the config's own options.
func NewSerializerFromConfig(store Store, cfg Config, opts ...Option) (*Serializer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, wrapValidation(err)
	}
	return NewSerializer(store, append(cfg.SerializerOptions(), opts...)...)
}

// NewCacheFromConfig validates cfg and opens the cache held in store.
func NewCacheFromConfig(ctx context.Context, store Store, cfg Config, opts ...CacheOption) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, wrapValidation(err)
	}
	base := []CacheOption{
		WithTTL(cfg.CacheTTL),
		WithSerializerOptions(cfg.SerializerOptions()...),
	}
	return NewCache(ctx, store, append(base, opts...)...)
}

// NewSecretsFromConfig validates cfg and builds Secrets over store.
func NewSecretsFromConfig(ctx context.Context, store Store, cfg Config, opts ...SecretsOption) (*Secrets, error) {
	if err := cfg.Validate(); err != nil {
		return nil, wrapValidation(err)
	}
	base := []SecretsOption{WithSecretsSerializerOptions(cfg.SerializerOptions()...)}
	if cfg.PasswordFile != "" {
		base = append(base, WithPasswordFile(cfg.PasswordFile))
	}
	if cfg.Salt != "" {
		base = append(base, WithSalt([]byte(cfg.Salt)))
	}
	return NewSecrets(ctx, store, append(base, opts...)...)
}

func wrapValidation(err error) error {
	return newConfigurationError("configuration validation failed: %v", err)
}
