package miscutils

import (
	"context"
	"net/http"

	"github.com/hengadev/miscutils/internal/health"
	"github.com/hengadev/miscutils/internal/reliability"
)

// HealthChecker runs named checks against stores. Serve it with
// HealthHandler.
type HealthChecker = health.Checker

// HealthCheck is one named check.
type HealthCheck = health.Check

// HealthReport is the outcome of HealthChecker.Run.
type HealthReport = health.Report

// NewHealthChecker returns an empty checker reporting this library's
// version.
func NewHealthChecker() *HealthChecker {
	return health.NewChecker("miscutils", Version)
}

// StoreHealthCheck is a critical check that reads store. An empty slot is
// healthy.
func StoreHealthCheck(name string, store Store) *HealthCheck {
	return health.PingCheck(name, func(ctx context.Context) error {
		_, err := store.ReadBytes(ctx)
		return err
	})
}

// HealthCheck degrades the report while the store's circuit is open.
func (r *ReliableStore) HealthCheck(name string) *HealthCheck {
	return health.CircuitCheck(name, func() bool {
		return r.breaker.State() == reliability.StateOpen
	})
}

// HealthHandler serves /health, /health/live, /health/ready and
// /health/check/{name}.
func HealthHandler(c *HealthChecker) http.Handler {
	return health.Handler(c)
}
