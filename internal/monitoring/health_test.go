package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) PingContext(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockRedisProbe struct {
	mock.Mock
}

func (m *MockRedisProbe) HealthCheck(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockRedisProbe) GetStats(ctx context.Context) map[string]interface{} {
	args := m.Called(ctx)
	return args.Get(0).(map[string]interface{})
}

func TestHealthChecker_AllHealthy(t *testing.T) {
	hc := NewHealthChecker("placesfinder", "test")

	db := &MockPinger{}
	db.On("PingContext", mock.Anything).Return(nil)
	redis := &MockRedisProbe{}
	redis.On("HealthCheck", mock.Anything).Return(true)
	redis.On("GetStats", mock.Anything).Return(map[string]interface{}{"hits": int64(1)})

	hc.RegisterDatabaseCheck("database", db)
	hc.RegisterRedisCheck("redis", redis)
	hc.RegisterPlacesKeyCheck("places_api_key", func() bool { return true })

	health := hc.GetHealth(context.Background())

	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Len(t, health.Components, 3)
	assert.Equal(t, "placesfinder", health.Service)
	db.AssertExpectations(t)
	redis.AssertExpectations(t)
}

func TestHealthChecker_DatabaseUnhealthy(t *testing.T) {
	hc := NewHealthChecker("placesfinder", "test")

	db := &MockPinger{}
	db.On("PingContext", mock.Anything).Return(errors.New("connection refused"))
	hc.RegisterDatabaseCheck("database", db)

	health := hc.GetHealth(context.Background())

	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Contains(t, health.Components["database"].Message, "connection refused")
}

func TestHealthChecker_RedisDownDegrades(t *testing.T) {
	hc := NewHealthChecker("placesfinder", "test")

	redis := &MockRedisProbe{}
	redis.On("HealthCheck", mock.Anything).Return(false)
	hc.RegisterRedisCheck("redis", redis)

	health := hc.GetHealth(context.Background())

	assert.Equal(t, HealthStatusDegraded, health.Status)
	redis.AssertNotCalled(t, "GetStats", mock.Anything)
}

func TestHealthChecker_MissingAPIKeyDegrades(t *testing.T) {
	hc := NewHealthChecker("placesfinder", "test")
	hc.RegisterPlacesKeyCheck("places_api_key", func() bool { return false })

	health := hc.GetHealth(context.Background())

	assert.Equal(t, HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Components["places_api_key"].Message, "GOOGLE_PLACES_API_KEY")
}

func TestHealthChecker_CachesResults(t *testing.T) {
	hc := NewHealthChecker("placesfinder", "test")

	calls := 0
	hc.RegisterCustomCheck("counter", false, func(ctx context.Context) ComponentHealth {
		calls++
		return ComponentHealth{Status: HealthStatusHealthy}
	})

	hc.GetHealth(context.Background())
	hc.GetHealth(context.Background())
	assert.Equal(t, 1, calls)

	hc.SetCheckInterval(0)
	hc.GetHealth(context.Background())
	assert.Equal(t, 2, calls)
}

func TestHealthHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hc := NewHealthChecker("placesfinder", "test")
	failing := true
	hc.SetCheckInterval(0)
	hc.RegisterCustomCheck("database", true, func(ctx context.Context) ComponentHealth {
		if failing {
			return ComponentHealth{Status: HealthStatusUnhealthy}
		}
		return ComponentHealth{Status: HealthStatusHealthy}
	})

	router := gin.New()
	router.GET("/health", hc.HealthHandler())
	router.GET("/ready", hc.ReadinessHandler())
	router.GET("/live", hc.LivenessHandler())

	tests := []struct {
		name     string
		path     string
		failing  bool
		expected int
	}{
		{"health unhealthy", "/health", true, http.StatusServiceUnavailable},
		{"ready unhealthy", "/ready", true, http.StatusServiceUnavailable},
		{"live while unhealthy", "/live", true, http.StatusOK},
		{"health ok", "/health", false, http.StatusOK},
		{"ready ok", "/ready", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing = tt.failing
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["status"])
		})
	}
}
