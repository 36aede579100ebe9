package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records request metrics and exposes the monitoring endpoints
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	health  *HealthChecker
	config  *MiddlewareConfig
}

// MiddlewareConfig configures the monitoring middleware
type MiddlewareConfig struct {
	// MetricsPath is the path for metrics endpoint
	MetricsPath string
	// HealthPath is the path for health check endpoint
	HealthPath string
	// SkipPaths are paths to skip monitoring
	SkipPaths []string
	// SlowRequestThreshold defines what constitutes a slow request
	SlowRequestThreshold time.Duration
}

// DefaultMiddlewareConfig returns default configuration
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		MetricsPath:          "/metrics",
		HealthPath:           "/health",
		SkipPaths:            []string{"/favicon.ico", "/robots.txt"},
		SlowRequestThreshold: 10 * time.Second,
	}
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(config *MiddlewareConfig, metrics *MetricsCollector, health *HealthChecker) *MonitoringMiddleware {
	if config == nil {
		config = DefaultMiddlewareConfig()
	}
	if metrics == nil {
		metrics = NewMetricsCollector()
	}

	return &MonitoringMiddleware{
		metrics: metrics,
		health:  health,
		config:  config,
	}
}

// GinMiddleware returns a Gin middleware function
func (mm *MonitoringMiddleware) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if mm.shouldSkipPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		mm.metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)

		if status >= 400 {
			mm.metrics.NewCounter("http_errors_total", "Total HTTP errors", map[string]string{
				"route":  route,
				"status": strconv.Itoa(status),
			}).Inc()
		}

		if duration > mm.config.SlowRequestThreshold {
			mm.metrics.NewCounter("http_slow_requests_total", "Total slow HTTP requests", map[string]string{
				"route": route,
			}).Inc()
		}
	}
}

func (mm *MonitoringMiddleware) shouldSkipPath(path string) bool {
	for _, skipPath := range mm.config.SkipPaths {
		if path == skipPath {
			return true
		}
	}
	return false
}

// RegisterRoutes registers monitoring endpoints
func (mm *MonitoringMiddleware) RegisterRoutes(router gin.IRoutes) {
	router.GET(mm.config.MetricsPath, mm.metrics.PrometheusHandler())
	router.GET(mm.config.MetricsPath+"/json", mm.metrics.JSONHandler())

	if mm.health != nil {
		router.GET(mm.config.HealthPath, mm.health.HealthHandler())
		router.GET(mm.config.HealthPath+"/live", mm.health.LivenessHandler())
		router.GET(mm.config.HealthPath+"/ready", mm.health.ReadinessHandler())
	}
}

// GetMetrics returns the metrics collector
func (mm *MonitoringMiddleware) GetMetrics() *MetricsCollector {
	return mm.metrics
}

// GetHealth returns the health checker
func (mm *MonitoringMiddleware) GetHealth() *HealthChecker {
	return mm.health
}
