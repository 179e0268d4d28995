// Package health runs named checks against the backends a process depends
// on and serves the results over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a check that sets no timeout of its own.
const DefaultTimeout = 5 * time.Second

var (
	ErrInvalidCheck  = errors.New("invalid health check")
	ErrCheckNotFound = errors.New("health check not found")
)

// Check is one named probe. A critical check that fails makes the whole
// report unhealthy; other failures only degrade it.
type Check struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Func     func(ctx context.Context) (Status, error)
}

// Result is the outcome of one Check.
type Result struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Critical  bool          `json:"critical"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report is the outcome of every registered check.
type Report struct {
	Status    Status             `json:"status"`
	Service   string             `json:"service,omitempty"`
	Version   string             `json:"version,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  time.Duration      `json:"duration"`
	Results   map[string]*Result `json:"results"`
}

// Checker holds the registered checks.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]*Check
	service string
	version string
	now     func() time.Time
}

// NewChecker returns a Checker reporting service and version.
func NewChecker(service, version string) *Checker {
	return &Checker{
		checks:  make(map[string]*Check),
		service: service,
		version: version,
		now:     time.Now,
	}
}

// Register adds check, replacing one with the same name.
func (c *Checker) Register(check *Check) error {
	if check == nil || check.Name == "" || check.Func == nil {
		return fmt.Errorf("%w: name and func are required", ErrInvalidCheck)
	}
	if check.Timeout <= 0 {
		check.Timeout = DefaultTimeout
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[check.Name] = check
	return nil
}

// Names returns the registered check names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes every check concurrently.
func (c *Checker) Run(ctx context.Context) *Report {
	start := c.now()

	c.mu.RLock()
	checks := make([]*Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	results := make(map[string]*Result, len(checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := c.execute(ctx, check)
			mu.Lock()
			results[check.Name] = r
			mu.Unlock()
		}()
	}
	wg.Wait()

	return &Report{
		Status:    overall(results),
		Service:   c.service,
		Version:   c.version,
		Timestamp: start,
		Duration:  c.now().Sub(start),
		Results:   results,
	}
}

// RunOne executes the named check.
func (c *Checker) RunOne(ctx context.Context, name string) (*Result, error) {
	c.mu.RLock()
	check, ok := c.checks[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
	}
	return c.execute(ctx, check), nil
}

func (c *Checker) execute(ctx context.Context, check *Check) (result *Result) {
	start := c.now()
	result = &Result{Name: check.Name, Critical: check.Critical, Timestamp: start}

	ctx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusUnhealthy
			result.Error = fmt.Sprintf("check panicked: %v", r)
		}
		result.Duration = c.now().Sub(start)
	}()

	status, err := check.Func(ctx)
	result.Status = status
	if err != nil {
		result.Error = err.Error()
		if status == StatusHealthy || status == "" {
			result.Status = StatusUnhealthy
		}
	}
	return result
}

func overall(results map[string]*Result) Status {
	if len(results) == 0 {
		return StatusUnknown
	}
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusHealthy:
		case StatusDegraded:
			status = StatusDegraded
		default:
			if r.Critical {
				return StatusUnhealthy
			}
			status = StatusDegraded
		}
	}
	return status
}

// PingCheck is a critical check that is healthy when ping succeeds.
func PingCheck(name string, ping func(context.Context) error) *Check {
	return &Check{
		Name:     name,
		Critical: true,
		Func: func(ctx context.Context) (Status, error) {
			if err := ping(ctx); err != nil {
				return StatusUnhealthy, err
			}
			return StatusHealthy, nil
		},
	}
}

// CircuitCheck degrades the report while open reports true.
func CircuitCheck(name string, open func() bool) *Check {
	return &Check{
		Name: name,
		Func: func(ctx context.Context) (Status, error) {
			if open() {
				return StatusDegraded, errors.New("circuit breaker is open")
			}
			return StatusHealthy, nil
		},
	}
}

// Handler serves:
//
//	GET /health               full report
//	GET /health/live          always 200
//	GET /health/ready         200 while every critical check passes
//	GET /health/check/{name}  one check
func Handler(c *Checker) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		writeJSON(w, httpStatus(report.Status), report)
	})
	mux.HandleFunc("GET /health/live", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "alive", "timestamp": c.now()})
	})
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		ready := true
		for _, res := range report.Results {
			if res.Critical && res.Status != StatusHealthy {
				ready = false
				break
			}
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": status, "timestamp": report.Timestamp})
	})
	mux.HandleFunc("GET /health/check/{name}", func(w http.ResponseWriter, r *http.Request) {
		result, err := c.RunOne(r.Context(), r.PathValue("name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, httpStatus(result.Status), result)
	})
	return mux
}

func httpStatus(s Status) int {
	switch s {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
