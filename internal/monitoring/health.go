package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	Latency     *int64       `json:"latency_ms,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
	Details     interface{}  `json:"details,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Service    string                     `json:"service"`
	Version    string                     `json:"version"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	System     SystemInfo                 `json:"system"`
}

// SystemInfo represents system-level information
type SystemInfo struct {
	MemoryUsage MemoryInfo `json:"memory"`
	Goroutines  int        `json:"goroutines"`
	CPUCount    int        `json:"cpu_count"`
	GoVersion   string     `json:"go_version"`
}

// MemoryInfo represents memory usage information
type MemoryInfo struct {
	Allocated  uint64 `json:"allocated_bytes"`
	TotalAlloc uint64 `json:"total_alloc_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

// CheckFunc probes one component.
type CheckFunc func(ctx context.Context) ComponentHealth

// Pinger is satisfied by *sql.DB and *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RedisProbe is satisfied by *cache.RedisService.
type RedisProbe interface {
	HealthCheck(ctx context.Context) bool
	GetStats(ctx context.Context) map[string]interface{}
}

// HealthChecker manages health checks for various components
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	service       string
	version       string
	components    map[string]ComponentHealth
	checkFuncs    map[string]CheckFunc
	critical      map[string]bool
	lastCheck     time.Time
	checkInterval time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		startTime:     time.Now(),
		service:       service,
		version:       version,
		components:    make(map[string]ComponentHealth),
		checkFuncs:    make(map[string]CheckFunc),
		critical:      make(map[string]bool),
		checkInterval: 30 * time.Second,
	}
}

// SetCheckInterval controls how long check results are reused.
func (hc *HealthChecker) SetCheckInterval(d time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = d
}

// RegisterDatabaseCheck registers a database health check
func (hc *HealthChecker) RegisterDatabaseCheck(name string, db Pinger) {
	hc.register(name, true, func(ctx context.Context) ComponentHealth {
		start := time.Now()
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := db.PingContext(ctx)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			return ComponentHealth{
				Status:      HealthStatusUnhealthy,
				Message:     fmt.Sprintf("Database connection failed: %v", err),
				Latency:     &latency,
				LastChecked: time.Now(),
			}
		}

		var details interface{}
		if withStats, ok := db.(interface{ Stats() sql.DBStats }); ok {
			stats := withStats.Stats()
			details = map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
				"wait_duration":    stats.WaitDuration.String(),
			}
		}

		status := HealthStatusHealthy
		if latency > 1000 {
			status = HealthStatusDegraded
		}

		return ComponentHealth{
			Status:      status,
			Message:     "Database connection successful",
			Latency:     &latency,
			LastChecked: time.Now(),
			Details:     details,
		}
	})
}

// RegisterRedisCheck registers a Redis health check. Redis only backs the
// detail cache and sessions, so a failure degrades rather than fails readiness.
func (hc *HealthChecker) RegisterRedisCheck(name string, redis RedisProbe) {
	hc.register(name, false, func(ctx context.Context) ComponentHealth {
		start := time.Now()
		isHealthy := redis.HealthCheck(ctx)
		latency := time.Since(start).Milliseconds()

		if !isHealthy {
			return ComponentHealth{
				Status:      HealthStatusDegraded,
				Message:     "Redis connection failed",
				Latency:     &latency,
				LastChecked: time.Now(),
			}
		}

		status := HealthStatusHealthy
		if latency > 500 {
			status = HealthStatusDegraded
		}

		return ComponentHealth{
			Status:      status,
			Message:     "Redis connection successful",
			Latency:     &latency,
			LastChecked: time.Now(),
			Details:     map[string]interface{}{"cache_stats": redis.GetStats(ctx)},
		}
	})
}

// RegisterPlacesKeyCheck reports whether the Places API key is configured.
// A missing key leaves the server up but searches will be refused.
func (hc *HealthChecker) RegisterPlacesKeyCheck(name string, configured func() bool) {
	hc.register(name, false, func(ctx context.Context) ComponentHealth {
		if !configured() {
			return ComponentHealth{
				Status:      HealthStatusDegraded,
				Message:     "API key not found. Please set the GOOGLE_PLACES_API_KEY environment variable.",
				LastChecked: time.Now(),
			}
		}
		return ComponentHealth{
			Status:      HealthStatusHealthy,
			Message:     "API key configured",
			LastChecked: time.Now(),
		}
	})
}

// RegisterCustomCheck registers a custom health check function
func (hc *HealthChecker) RegisterCustomCheck(name string, critical bool, check CheckFunc) {
	hc.register(name, critical, check)
}

func (hc *HealthChecker) register(name string, critical bool, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkFuncs[name] = check
	hc.critical[name] = critical
	hc.lastCheck = time.Time{}
}

// RunChecks executes all registered health checks
func (hc *HealthChecker) RunChecks(ctx context.Context) {
	hc.mu.RLock()
	funcs := make(map[string]CheckFunc, len(hc.checkFuncs))
	for name, fn := range hc.checkFuncs {
		funcs[name] = fn
	}
	hc.mu.RUnlock()

	results := make(map[string]ComponentHealth, len(funcs))
	for name, fn := range funcs {
		results[name] = fn(ctx)
	}

	hc.mu.Lock()
	hc.components = results
	hc.lastCheck = time.Now()
	hc.mu.Unlock()
}

// GetHealth returns the current health status
func (hc *HealthChecker) GetHealth(ctx context.Context) HealthResponse {
	hc.mu.RLock()
	stale := time.Since(hc.lastCheck) > hc.checkInterval
	hc.mu.RUnlock()

	if stale {
		hc.RunChecks(ctx)
	}

	hc.mu.RLock()
	defer hc.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(hc.components))
	overallStatus := HealthStatusHealthy
	for _, name := range sortedNames(hc.components) {
		component := hc.components[name]
		components[name] = component

		switch {
		case component.Status == HealthStatusUnhealthy && hc.critical[name]:
			overallStatus = HealthStatusUnhealthy
		case component.Status != HealthStatusHealthy && overallStatus == HealthStatusHealthy:
			overallStatus = HealthStatusDegraded
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return HealthResponse{
		Status:     overallStatus,
		Service:    hc.service,
		Version:    hc.version,
		Timestamp:  time.Now(),
		Uptime:     time.Since(hc.startTime).String(),
		Components: components,
		System: SystemInfo{
			MemoryUsage: MemoryInfo{
				Allocated:  memStats.Alloc,
				TotalAlloc: memStats.TotalAlloc,
				Sys:        memStats.Sys,
				NumGC:      memStats.NumGC,
			},
			Goroutines: runtime.NumGoroutine(),
			CPUCount:   runtime.NumCPU(),
			GoVersion:  runtime.Version(),
		},
	}
}

func sortedNames(components map[string]ComponentHealth) []string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthHandler returns a Gin handler for health checks
func (hc *HealthChecker) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.GetHealth(c.Request.Context())

		statusCode := http.StatusOK
		if health.Status == HealthStatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}

// ReadinessHandler returns a simple readiness check
func (hc *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.GetHealth(c.Request.Context())

		if health.Status == HealthStatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not ready",
				"message": "Service is unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "ready",
			"message": "Service is ready to accept traffic",
		})
	}
}

// LivenessHandler returns a simple liveness check
func (hc *HealthChecker) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"uptime":    time.Since(hc.startTime).String(),
			"timestamp": time.Now(),
		})
	}
}
