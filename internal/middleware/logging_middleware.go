package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/placesfinder/placesfinder/internal/telemetry"
)

// CorrelationHeader carries the request correlation id in both directions
const CorrelationHeader = "X-Correlation-ID"

// LoggingConfig holds the configuration for logging middleware
type LoggingConfig struct {
	SkipPaths     []string      `json:"skip_paths"`
	LogHeaders    bool          `json:"log_headers"`
	SlowThreshold time.Duration `json:"slow_threshold"`
}

// DefaultLoggingConfig returns the default logging middleware configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths: []string{
			"/health",
			"/health/live",
			"/health/ready",
			"/metrics",
		},
		LogHeaders:    false,
		SlowThreshold: 15 * time.Second,
	}
}

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
	"X-Api-Key":     true,
}

// LoggingMiddleware attaches a correlation id to every request and logs its outcome
func LoggingMiddleware(config *LoggingConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	skip := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skip[path] = true
	}

	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationHeader)
		if correlationID == "" {
			correlationID = telemetry.NewCorrelationID()
		}
		c.Header(CorrelationHeader, correlationID)

		ctx := telemetry.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		logger := telemetry.LogFromContext(ctx)

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"user_agent": c.Request.UserAgent(),
			"remote_ip":  c.ClientIP(),
		}

		if config.LogHeaders {
			headers := make(map[string]string)
			for name, values := range c.Request.Header {
				if redactedHeaders[name] {
					headers[name] = "[REDACTED]"
				} else if len(values) > 0 {
					headers[name] = values[0]
				}
			}
			fields["headers"] = headers
		}

		logger.WithFields(fields).Debug("Incoming HTTP request")

		c.Next()

		duration := time.Since(start)
		fields["status"] = c.Writer.Status()
		fields["duration_ms"] = float64(duration.Nanoseconds()) / 1e6
		fields["size"] = c.Writer.Size()

		if len(c.Errors) > 0 {
			errs := make([]string, len(c.Errors))
			for i, err := range c.Errors {
				errs[i] = err.Error()
			}
			fields["errors"] = errs
		}

		entry := logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("HTTP request completed with server error")
		case c.Writer.Status() >= 400:
			entry.Warn("HTTP request completed with client error")
		case duration > config.SlowThreshold:
			entry.Warn("HTTP request completed (slow)")
		default:
			entry.Info("HTTP request completed")
		}
	}
}
