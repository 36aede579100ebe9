package monitoring

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName    = "github.com/placesfinder/placesfinder/internal/monitoring"
	instrumentationVersion = "1.0.0"
)

// OTelMiddleware records HTTP server metrics. Spans come from otelgin, which
// is mounted ahead of this middleware.
type OTelMiddleware struct {
	meter metric.Meter

	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpResponseSize    metric.Int64Histogram
	httpActiveRequests  metric.Int64UpDownCounter
}

// NewOTelMiddleware creates a new OpenTelemetry middleware on the global meter provider
func NewOTelMiddleware() (*OTelMiddleware, error) {
	return NewOTelMiddlewareWithMeter(
		otel.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion)),
	)
}

// NewOTelMiddlewareWithMeter creates the middleware on the given meter
func NewOTelMiddlewareWithMeter(meter metric.Meter) (*OTelMiddleware, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	// Paginated searches wait between pages, so buckets reach 30s.
	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	httpResponseSize, err := meter.Int64Histogram(
		"http_response_size_bytes",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_response_size_bytes histogram: %w", err)
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests counter: %w", err)
	}

	return &OTelMiddleware{
		meter:               meter,
		httpRequestsTotal:   httpRequestsTotal,
		httpRequestDuration: httpRequestDuration,
		httpResponseSize:    httpResponseSize,
		httpActiveRequests:  httpActiveRequests,
	}, nil
}

// GinMiddleware returns a Gin middleware function recording request metrics
func (m *OTelMiddleware) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		active := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
		)
		m.httpActiveRequests.Add(ctx, 1, active)
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		m.httpActiveRequests.Add(ctx, -1, active)

		status := c.Writer.Status()
		attributes := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("route", route),
			attribute.String("status_code", strconv.Itoa(status)),
			attribute.String("status_class", getStatusClass(status)),
		)

		m.httpRequestsTotal.Add(ctx, 1, attributes)
		m.httpRequestDuration.Record(ctx, duration.Seconds(), attributes)
		if size := c.Writer.Size(); size > 0 {
			m.httpResponseSize.Record(ctx, int64(size), attributes)
		}
	}
}

// getStatusClass returns the status class (1xx, 2xx, 3xx, 4xx, 5xx) for a given status code
func getStatusClass(statusCode int) string {
	switch {
	case statusCode >= 100 && statusCode < 200:
		return "1xx"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
