// Package reliability retries and short-circuits calls to flaky backends.
package reliability

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays between attempts.
type Backoff struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the fraction of the delay added or removed at random.
	Jitter float64
}

// DefaultBackoff returns 3 attempts starting at 100ms.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = def.MaxAttempts
	}
	if b.InitialDelay < 0 {
		b.InitialDelay = def.InitialDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = def.MaxDelay
	}
	if b.Multiplier <= 0 {
		b.Multiplier = def.Multiplier
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		b.Jitter = def.Jitter
	}
	return b
}

// Delay returns the wait before retry number attempt (0-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter > 0 {
		delay += (rand.Float64() - 0.5) * 2 * delay * b.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Retrier runs an operation until it succeeds, the error is not retryable
// or the attempts run out.
type Retrier struct {
	backoff   Backoff
	retryable func(error) bool
	onRetry   func(attempt int, delay time.Duration, err error)
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewRetrier retries errors for which retryable returns true. A nil
// retryable retries every error.
func NewRetrier(b Backoff, retryable func(error) bool) *Retrier {
	if retryable == nil {
		retryable = func(err error) bool { return err != nil }
	}
	return &Retrier{
		backoff:   b.withDefaults(),
		retryable: retryable,
		onRetry:   func(int, time.Duration, error) {},
		sleep:     sleepContext,
	}
}

// OnRetry sets a callback run before each retry.
func (r *Retrier) OnRetry(fn func(attempt int, delay time.Duration, err error)) {
	if fn != nil {
		r.onRetry = fn
	}
}

// Backoff returns the effective backoff settings.
func (r *Retrier) Backoff() Backoff { return r.backoff }

// Do returns nil on the first success, otherwise the last error. A
// cancelled context stops the loop with the context's error.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.backoff.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !r.retryable(err) || attempt == r.backoff.MaxAttempts-1 {
			break
		}

		delay := r.backoff.Delay(attempt)
		r.onRetry(attempt+1, delay, err)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
