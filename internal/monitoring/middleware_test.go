package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func newMonitoredRouter(mm *MonitoringMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mm.GinMiddleware())
	mm.RegisterRoutes(router)

	router.GET("/api/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.POST("/api/search", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please enter a search query"})
	})
	return router
}

func TestMonitoringMiddleware_RecordsRequests(t *testing.T) {
	mm := NewMonitoringMiddleware(nil, nil, nil)
	router := newMonitoredRouter(mm)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/search", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	metrics := mm.GetMetrics()
	assert.Equal(t, float64(2), metrics.NewCounter("http_requests_total", "", map[string]string{
		"method": "GET", "route": "/api/session", "status": "200",
	}).Get())
	assert.Equal(t, float64(1), metrics.NewCounter("http_errors_total", "", map[string]string{
		"route": "/api/search", "status": "400",
	}).Get())
}

func TestMonitoringMiddleware_SkipPaths(t *testing.T) {
	mm := NewMonitoringMiddleware(nil, nil, nil)
	router := newMonitoredRouter(mm)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))

	assert.Equal(t, float64(0), mm.GetMetrics().NewCounter("http_requests_total", "", map[string]string{
		"method": "GET", "route": "unmatched", "status": "404",
	}).Get())
}

func TestMonitoringMiddleware_Routes(t *testing.T) {
	health := NewHealthChecker("placesfinder", "test")
	health.RegisterPlacesKeyCheck("places_api_key", func() bool { return true })
	mm := NewMonitoringMiddleware(nil, nil, health)
	router := newMonitoredRouter(mm)

	for _, path := range []string{"/metrics", "/metrics/json", "/health", "/health/live", "/health/ready"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestOTelMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewOTelMiddlewareWithMeter(provider.Meter("test"))
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/export", func(c *gin.Context) {
		c.String(http.StatusOK, "name,address\n")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/export", nil))
	require.Equal(t, http.StatusOK, w.Code)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, metrics["http_requests_total"]))
	assert.Contains(t, metrics, "http_request_duration_seconds")
	assert.Contains(t, metrics, "http_response_size_bytes")
}

func TestGetStatusClass(t *testing.T) {
	tests := map[int]string{
		101: "1xx",
		200: "2xx",
		302: "3xx",
		429: "4xx",
		502: "5xx",
		0:   "unknown",
	}
	for code, class := range tests {
		assert.Equal(t, class, getStatusClass(code))
	}
}
