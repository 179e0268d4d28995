package reliability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is wrapped by every CircuitOpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	// StateClosed lets calls through.
	StateClosed CircuitState = iota
	// StateOpen fails calls fast.
	StateOpen
	// StateHalfOpen lets a limited number of trial calls through.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open.
	OpenTimeout time.Duration
	// HalfOpenRequests caps concurrent trial calls.
	HalfOpenRequests int
	// ShouldTrip reports whether err counts as a failure. Defaults to any
	// non-nil error.
	ShouldTrip func(err error) bool
	// OnStateChange runs with the breaker lock held.
	OnStateChange func(name string, from, to CircuitState)
	// Now replaces time.Now.
	Now func() time.Time
}

// DefaultBreakerConfig opens after 5 failures for 60s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		HalfOpenRequests: 1,
	}
}

// CircuitBreaker stops calling a backend that keeps failing.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	inFlight  int
	openUntil time.Time
}

// NewCircuitBreaker fills unset fields of config from DefaultBreakerConfig.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = def.OpenTimeout
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = def.HalfOpenRequests
	}
	if config.ShouldTrip == nil {
		config.ShouldTrip = func(err error) bool { return err != nil }
	}
	if config.OnStateChange == nil {
		config.OnStateChange = func(string, CircuitState, CircuitState) {}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CircuitBreaker{name: name, config: config}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn unless the circuit is open, in which case it returns a
// *CircuitOpenError without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return &CircuitOpenError{Name: cb.name, RetryAt: cb.openUntil}
	case StateHalfOpen:
		if cb.inFlight >= cb.config.HalfOpenRequests {
			return &CircuitOpenError{Name: cb.name, RetryAt: cb.openUntil}
		}
		cb.inFlight++
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	if cb.config.ShouldTrip(err) {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
		return
	}
	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	case StateClosed:
		cb.failures = 0
	}
}

// currentState moves an open circuit whose timeout passed to half-open.
// The caller holds mu.
func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == StateOpen && !cb.config.Now().Before(cb.openUntil) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state CircuitState) {
	prev := cb.state
	cb.state = state
	cb.successes = 0
	switch state {
	case StateClosed:
		cb.failures = 0
		cb.openUntil = time.Time{}
	case StateOpen:
		cb.openUntil = cb.config.Now().Add(cb.config.OpenTimeout)
	case StateHalfOpen:
		cb.inFlight = 0
	}
	if prev != state {
		cb.config.OnStateChange(cb.name, prev, state)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
}

// CircuitOpenError is returned while the circuit is open.
type CircuitOpenError struct {
	Name    string
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is open, next attempt allowed at %s",
		e.Name, e.RetryAt.Format(time.RFC3339))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }
