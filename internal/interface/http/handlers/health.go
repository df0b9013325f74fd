// Package handlers provides HTTP building blocks shared by the API server:
// health checking and request middleware.
package handlers

import (
	"context"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECKING
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports whether the service and its dependencies are healthy.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthStatus is the aggregate outcome of all registered checks.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
}

// CheckResult is the outcome of a single dependency check.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Pinger is anything that can be pinged to verify connectivity. Both the
// Postgres connection and the Redis cache satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency check.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// NewDatabaseCheck probes the primary database. It is critical: the service
// cannot grade or award without it.
func NewDatabaseCheck(db Pinger) Check {
	return Check{
		Name:     "database",
		Critical: true,
		Probe:    db.Ping,
	}
}

// NewCacheCheck probes the cache. It is not critical: the service degrades
// to database reads when the cache is down.
func NewCacheCheck(cache Pinger) Check {
	return Check{
		Name:     "cache",
		Critical: false,
		Probe:    cache.Ping,
	}
}

// CompositeHealthChecker runs a set of checks in parallel with a shared
// timeout and aggregates the results.
type CompositeHealthChecker struct {
	checks  []Check
	timeout time.Duration
}

// NewCompositeHealthChecker creates a checker over the given checks.
func NewCompositeHealthChecker(timeout time.Duration, checks ...Check) *CompositeHealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CompositeHealthChecker{checks: checks, timeout: timeout}
}

// Check runs all registered checks. The service is unhealthy when any check
// fails, and not ready when a critical check fails.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(c.checks)),
		CheckedAt: time.Now().UTC(),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, check := range c.checks {
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()

			start := time.Now()
			err := check.Probe(ctx)
			result := CheckResult{
				Healthy: err == nil,
				Latency: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			status.Checks[check.Name] = result
			if err != nil {
				status.Healthy = false
				if check.Critical {
					status.Ready = false
					status.Message = check.Name + " unavailable"
				}
			}
		}(check)
	}
	wg.Wait()

	return status
}

// NoopHealthChecker always reports healthy. Used in tests and when no
// dependencies are wired.
type NoopHealthChecker struct{}

// Check implements HealthChecker.
func (NoopHealthChecker) Check(ctx context.Context) HealthStatus {
	return HealthStatus{Healthy: true, Ready: true, CheckedAt: time.Now().UTC()}
}
