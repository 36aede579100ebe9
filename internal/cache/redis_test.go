package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/places"
)

// MockRedisClient is a mock implementation of RedisClientInterface
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewStatusCmd(ctx)
	if args.Error(1) != nil {
		cmd.SetErr(args.Error(1))
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	cmd := redis.NewStringCmd(ctx)
	if args.Error(1) != nil {
		cmd.SetErr(args.Error(1))
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	cmd := redis.NewIntCmd(ctx)
	if args.Error(1) != nil {
		cmd.SetErr(args.Error(1))
	} else {
		cmd.SetVal(args.Get(0).(int64))
	}
	return cmd
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	cmd := redis.NewStatusCmd(ctx)
	if args.Error(1) != nil {
		cmd.SetErr(args.Error(1))
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, expiration)
	cmd := redis.NewBoolCmd(ctx)
	if args.Error(1) != nil {
		cmd.SetErr(args.Error(1))
	} else {
		cmd.SetVal(args.Bool(0))
	}
	return cmd
}

func (m *MockRedisClient) Info(ctx context.Context, section ...string) *redis.StringCmd {
	args := m.Called(ctx, section)
	cmd := redis.NewStringCmd(ctx)
	if args.Error(1) != nil {
		cmd.SetErr(args.Error(1))
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type recordedOp struct {
	operation string
	result    string
}

type fakeRecorder struct {
	ops []recordedOp
}

func (f *fakeRecorder) RecordCacheOperation(operation, result string) {
	f.ops = append(f.ops, recordedOp{operation, result})
}

func cachedEntry(t *testing.T, data interface{}, age time.Duration, ttl int) string {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	entry, err := json.Marshal(CacheEntry{
		Data:      raw,
		Timestamp: time.Now().Add(-age),
		TTL:       ttl,
		Version:   entryVersion,
	})
	require.NoError(t, err)
	return string(entry)
}

func TestRedisService_Set(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Set", mock.Anything, "test_key", []byte(`"test_value"`), time.Minute).Return("OK", nil)

	err := service.Set(context.Background(), "test_key", "test_value", time.Minute)

	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestRedisService_Set_DefaultTTL(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Set", mock.Anything, "k", mock.Anything, DefaultTTL).Return("OK", nil)

	require.NoError(t, service.Set(context.Background(), "k", 1, 0))
	mockClient.AssertExpectations(t)
}

func TestRedisService_Set_Error(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("READONLY"))

	err := service.Set(context.Background(), "k", "v", time.Minute)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeCache))
}

func TestRedisService_Get(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Get", mock.Anything, "test_key").Return(`"test_value"`, nil)

	value, err := service.Get(context.Background(), "test_key")

	assert.NoError(t, err)
	assert.Equal(t, `"test_value"`, value)
	mockClient.AssertExpectations(t)
}

func TestRedisService_Get_NotFound(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Get", mock.Anything, "nonexistent_key").Return("", redis.Nil)

	value, err := service.Get(context.Background(), "nonexistent_key")

	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Empty(t, value)
	mockClient.AssertExpectations(t)
}

func TestRedisService_Delete(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Del", mock.Anything, []string{"key1"}).Return(int64(1), nil)

	assert.NoError(t, service.Delete(context.Background(), "key1"))
	mockClient.AssertExpectations(t)
}

func TestRedisService_GetCache(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Get", mock.Anything, "cache:detail:A").
		Return(cachedEntry(t, map[string]string{"website": "https://a.example"}, time.Minute, 3600), nil)

	var data map[string]string
	err := service.GetCache(context.Background(), "detail:A", &data)

	assert.NoError(t, err)
	assert.Equal(t, "https://a.example", data["website"])
	mockClient.AssertExpectations(t)
}

func TestRedisService_GetCache_Stale(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Get", mock.Anything, "cache:k").
		Return(cachedEntry(t, "v", 2*time.Hour, 3600), nil)

	var data string
	err := service.GetCache(context.Background(), "k", &data)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisService_Sessions(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)
	ctx := context.Background()

	mockClient.On("Set", mock.Anything, "session:abc", mock.Anything, 24*time.Hour).Return("OK", nil)
	mockClient.On("Get", mock.Anything, "session:abc").Return(`{"radius":5000}`, nil)
	mockClient.On("Get", mock.Anything, "session:missing").Return("", redis.Nil)
	mockClient.On("Del", mock.Anything, []string{"session:abc"}).Return(int64(1), nil)

	require.NoError(t, service.SetSession(ctx, "abc", map[string]int{"radius": 5000}, 24*time.Hour))

	var data map[string]int
	require.NoError(t, service.GetSession(ctx, "abc", &data))
	assert.Equal(t, 5000, data["radius"])

	assert.ErrorIs(t, service.GetSession(ctx, "missing", &data), ErrCacheMiss)
	assert.NoError(t, service.DeleteSession(ctx, "abc"))
	mockClient.AssertExpectations(t)
}

func TestRedisService_HealthCheck(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Ping", mock.Anything).Return("PONG", nil).Once()
	assert.True(t, service.HealthCheck(context.Background()))

	mockClient.On("Ping", mock.Anything).Return("", errors.New("connection refused")).Once()
	assert.False(t, service.HealthCheck(context.Background()))
}

func TestRedisService_GetStats(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Info", mock.Anything, []string{"stats"}).
		Return("# Stats\r\nkeyspace_hits:30\r\nkeyspace_misses:10\r\n", nil)
	mockClient.On("Info", mock.Anything, []string{"clients"}).
		Return("# Clients\r\nconnected_clients:4\r\n", nil)

	stats := service.GetStats(context.Background())
	assert.Equal(t, int64(30), stats["hits"])
	assert.Equal(t, int64(10), stats["misses"])
	assert.Equal(t, 0.75, stats["hit_rate"])
	assert.Equal(t, 4, stats["connections"])
}

func TestRedisService_Close(t *testing.T) {
	mockClient := &MockRedisClient{}
	service := NewRedisServiceWithClient(mockClient, nil)

	mockClient.On("Close").Return(nil)
	assert.NoError(t, service.Close())
	assert.Nil(t, service.GetClient())
}

func TestDetailCache(t *testing.T) {
	mockClient := &MockRedisClient{}
	recorder := &fakeRecorder{}
	detailCache := NewDetailCache(NewRedisServiceWithClient(mockClient, nil), time.Hour, recorder)
	ctx := context.Background()

	detail := places.PlaceDetail{FormattedPhoneNumber: "(415) 555-0100", Website: "https://a.example"}

	mockClient.On("Get", mock.Anything, "cache:detail:A").Return(cachedEntry(t, detail, time.Minute, 3600), nil)
	mockClient.On("Get", mock.Anything, "cache:detail:B").Return("", redis.Nil)
	mockClient.On("Get", mock.Anything, "cache:detail:C").Return("", errors.New("i/o timeout"))
	mockClient.On("Set", mock.Anything, "cache:detail:B", mock.Anything, time.Hour).Return("OK", nil)

	got, ok, err := detailCache.GetDetail(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, detail, *got)

	got, ok, err = detailCache.GetDetail(ctx, "B")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	_, ok, err = detailCache.GetDetail(ctx, "C")
	assert.Error(t, err)
	assert.False(t, ok)

	require.NoError(t, detailCache.SetDetail(ctx, "B", places.PlaceDetail{}))

	assert.Equal(t, []recordedOp{
		{"get", "hit"},
		{"get", "miss"},
		{"get", "error"},
		{"set", "ok"},
	}, recorder.ops)
	mockClient.AssertExpectations(t)
}
