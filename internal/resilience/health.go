package resilience

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LastCheck time.Time              `json:"lastCheck"`
	Latency   time.Duration          `json:"latency"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// HealthReport is the aggregate answer served by /healthz.
type HealthReport struct {
	Status     HealthStatus      `json:"status"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu         sync.RWMutex
	startTime  time.Time
	components map[string]HealthCheck
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		startTime:  time.Now(),
		components: make(map[string]HealthCheck),
	}
}

// RegisterComponent registers a health check for a component.
func (m *HealthMonitor) RegisterComponent(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = check
}

// Check runs every registered check and folds them into a report. The
// service degrades rather than fails, so an unhealthy dependency makes the
// whole report DEGRADED, never UNHEALTHY.
func (m *HealthMonitor) Check(ctx context.Context) HealthReport {
	m.mu.RLock()
	checks := make(map[string]HealthCheck, len(m.components))
	for name, check := range m.components {
		checks[name] = check
	}
	m.mu.RUnlock()

	report := HealthReport{
		Status: HealthStatusHealthy,
		Uptime: time.Since(m.startTime).Round(time.Second).String(),
	}
	for name, check := range checks {
		start := time.Now()
		h := check(ctx)
		h.Name = name
		h.LastCheck = time.Now()
		h.Latency = time.Since(start)
		report.Components = append(report.Components, h)

		if h.Status != HealthStatusHealthy {
			report.Status = HealthStatusDegraded
		}
	}
	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i].Name < report.Components[j].Name
	})
	return report
}

// BreakerCheck reports a provider's breaker as a component: open is
// unhealthy, half-open degraded.
func BreakerCheck(cb *CircuitBreaker) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		stats := cb.Stats()
		h := ComponentHealth{
			Status: HealthStatusHealthy,
			Details: map[string]interface{}{
				"state":        stats.State,
				"failure_rate": stats.FailureRate(),
			},
		}
		switch stats.State {
		case CircuitOpen:
			h.Status = HealthStatusUnhealthy
			h.Message = "circuit open"
		case CircuitHalfOpen:
			h.Status = HealthStatusDegraded
			h.Message = "circuit probing"
		}
		return h
	}
}
