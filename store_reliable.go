package miscutils

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/hengadev/miscutils/internal/reliability"
)

// ReliableStore retries failed reads and writes of a remote store with
// exponential backoff, and stops calling it for a while after repeated
// failures. Only storage errors are retried.
type ReliableStore struct {
	store   Store
	retrier *reliability.Retrier
	breaker *reliability.CircuitBreaker
	logger  *slog.Logger
}

// ReliableOption configures a ReliableStore.
type ReliableOption func(*reliableConfig)

type reliableConfig struct {
	name    string
	backoff reliability.Backoff
	breaker reliability.BreakerConfig
	logger  *slog.Logger
}

// WithRetries sets the number of attempts per call and the first delay.
func WithRetries(attempts int, initialDelay time.Duration) ReliableOption {
	return func(c *reliableConfig) {
		c.backoff.MaxAttempts = attempts
		c.backoff.InitialDelay = initialDelay
	}
}

// WithCircuitBreaker opens the circuit after failures consecutive failed
// calls and keeps it open for openFor.
func WithCircuitBreaker(failures int, openFor time.Duration) ReliableOption {
	return func(c *reliableConfig) {
		c.breaker.FailureThreshold = failures
		c.breaker.OpenTimeout = openFor
	}
}

// WithStoreName names the store in logs and errors.
func WithStoreName(name string) ReliableOption {
	return func(c *reliableConfig) {
		c.name = name
	}
}

// WithStoreLogger logs retries and circuit transitions to logger.
func WithStoreLogger(logger *slog.Logger) ReliableOption {
	return func(c *reliableConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withBreakerClock is used by tests.
func withBreakerClock(now func() time.Time) ReliableOption {
	return func(c *reliableConfig) {
		c.breaker.Now = now
	}
}

// NewReliableStore wraps store. By default a call is tried 3 times and the
// circuit opens after 5 failed calls for one minute.
func NewReliableStore(store Store, opts ...ReliableOption) (*ReliableStore, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	cfg := reliableConfig{
		name:    "store",
		backoff: reliability.DefaultBackoff(),
		breaker: reliability.DefaultBreakerConfig(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.backoff.MaxAttempts < 0 || cfg.backoff.InitialDelay < 0 {
		return nil, newConfigurationError("retries and delay cannot be negative")
	}

	logger := cfg.logger.With("store", cfg.name)
	cfg.breaker.ShouldTrip = func(err error) bool {
		return IsStorageError(err) && !errors.Is(err, reliability.ErrCircuitOpen)
	}
	cfg.breaker.OnStateChange = func(name string, from, to reliability.CircuitState) {
		logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
	}

	r := &ReliableStore{
		store:   store,
		retrier: reliability.NewRetrier(cfg.backoff, isRetryableStoreError),
		breaker: reliability.NewCircuitBreaker(cfg.name, cfg.breaker),
		logger:  logger,
	}
	r.retrier.OnRetry(func(attempt int, delay time.Duration, err error) {
		logger.Debug("retrying store call", "attempt", attempt, "delay", delay, "error", err)
	})
	return r, nil
}

func isRetryableStoreError(err error) bool {
	return IsStorageError(err) &&
		!errors.Is(err, ErrNilStore) &&
		!errors.Is(err, reliability.ErrCircuitOpen)
}

// Unwrap returns the wrapped store.
func (r *ReliableStore) Unwrap() Store { return r.store }

// CircuitState returns "closed", "open" or "half_open".
func (r *ReliableStore) CircuitState() string { return r.breaker.State().String() }

func (r *ReliableStore) ReadBytes(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.call(ctx, "read", func(ctx context.Context) error {
		var err error
		data, err = r.store.ReadBytes(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *ReliableStore) WriteBytes(ctx context.Context, data []byte) error {
	return r.call(ctx, "write", func(ctx context.Context) error {
		return r.store.WriteBytes(ctx, data)
	})
}

func (r *ReliableStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.breaker.Execute(ctx, fn)
	})
	if errors.Is(err, reliability.ErrCircuitOpen) {
		return newStorageError(op, err)
	}
	return err
}
