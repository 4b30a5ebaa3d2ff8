package resilience

import (
	"context"
	"fmt"
	"runtime"
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
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency_ns"`
}

// HealthCheck represents a health check function.
type HealthCheck func(ctx context.Context) ComponentHealth

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status        HealthStatus      `json:"status"`
	Uptime        string            `json:"uptime"`
	Components    []ComponentHealth `json:"components"`
	Goroutines    int               `json:"goroutines"`
	MemoryAllocMB uint64            `json:"memory_alloc_mb"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu         sync.RWMutex
	startTime  time.Time
	components map[string]HealthCheck
	timeout    time.Duration
}

// NewHealthChecker creates a checker whose checks share one timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]HealthCheck),
		timeout:    timeout,
	}
}

// RegisterComponent registers a health check for a component.
func (h *HealthChecker) RegisterComponent(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = check
}

// Check runs every component check concurrently. A panicking check is
// reported unhealthy.
func (h *HealthChecker) Check(ctx context.Context) SystemHealth {
	h.mu.RLock()
	components := make(map[string]HealthCheck, len(h.components))
	for k, v := range h.components {
		components[k] = v
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []ComponentHealth
	)
	for name, check := range components {
		wg.Add(1)
		go func(n string, c HealthCheck) {
			defer wg.Done()
			start := time.Now()
			health := runCheck(ctx, n, c)
			health.Name = n
			health.LastCheck = time.Now()
			health.Latency = time.Since(start)

			mu.Lock()
			results = append(results, health)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status := HealthStatusHealthy
	for _, r := range results {
		switch r.Status {
		case HealthStatusUnhealthy:
			status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemHealth{
		Status:        status,
		Uptime:        time.Since(h.startTime).Round(time.Second).String(),
		Components:    results,
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: memStats.Alloc / 1024 / 1024,
	}
}

func runCheck(ctx context.Context, name string, check HealthCheck) (health ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			health = ComponentHealth{
				Name:    name,
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("Panic recovered: %v", r),
			}
		}
	}()
	return check(ctx)
}

// DatabaseHealthCheck creates a health check for database connections.
func DatabaseHealthCheck(ping func(ctx context.Context) error) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start)

		if err != nil {
			return ComponentHealth{Status: HealthStatusUnhealthy, Message: fmt.Sprintf("Database ping failed: %v", err)}
		}
		if latency > 100*time.Millisecond {
			return ComponentHealth{Status: HealthStatusDegraded, Message: fmt.Sprintf("Database slow: %v", latency)}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// BreakerHealthCheck reports degraded while any breaker is not closed.
func BreakerHealthCheck(r *BreakerRegistry) HealthCheck {
	return func(ctx context.Context) ComponentHealth {
		for _, s := range r.Status() {
			if s.State != "closed" {
				return ComponentHealth{
					Status:  HealthStatusDegraded,
					Message: fmt.Sprintf("breaker %s is %s", s.Name, s.State),
				}
			}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	}
}

// StaticHealthCheck reports a fixed status, for optional components that
// are disabled by configuration.
func StaticHealthCheck(status HealthStatus, message string) HealthCheck {
	return func(context.Context) ComponentHealth {
		return ComponentHealth{Status: status, Message: message}
	}
}
