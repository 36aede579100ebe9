package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
	"github.com/placesfinder/placesfinder/internal/telemetry"
)

// ErrCacheMiss is returned when a key is absent or its entry has expired.
var ErrCacheMiss = errors.New("cache miss")

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// RedisClientInterface defines the Redis client interface for testing
type RedisClientInterface interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Info(ctx context.Context, section ...string) *redis.StringCmd
	Close() error
}

// RedisService provides Redis operations for detail caching and sessions
type RedisService struct {
	client RedisClientInterface
	config *RedisConfig
}

// CacheEntry represents a cached item with metadata
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	TTL       int             `json:"ttl"`
	Version   string          `json:"version"`
}

const (
	DefaultTTL = time.Hour

	cachePrefix   = "cache:"
	sessionPrefix = "session:"
	entryVersion  = "1.0"
)

// NewRedisService connects to Redis with the OpenTelemetry tracing hook installed
func NewRedisService(ctx context.Context, config *RedisConfig) (*RedisService, error) {
	if config == nil {
		config = &RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10}
	}

	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation": "redis_connection",
		"service":   "cache",
		"host":      config.Host,
		"port":      config.Port,
		"db":        config.DB,
		"pool_size": config.PoolSize,
	})

	logger.Info("Establishing Redis connection")

	rdb := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: 3,
	})
	telemetry.InstrumentRedisClient(rdb)

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("Failed to connect to Redis")
		_ = rdb.Close()
		return nil, apperrors.NewCacheError("PING", err)
	}

	logger.Info("Redis connected successfully")
	return NewRedisServiceWithClient(rdb, config), nil
}

// NewRedisServiceWithClient wraps an existing client
func NewRedisServiceWithClient(client RedisClientInterface, config *RedisConfig) *RedisService {
	if config == nil {
		config = &RedisConfig{}
	}
	return &RedisService{client: client, config: config}
}

// Set stores a JSON-encoded value with TTL; a zero TTL uses DefaultTTL
func (r *RedisService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":   "redis_set",
		"key":         key,
		"ttl_seconds": ttl.Seconds(),
		"service":     "cache",
	})

	data, err := json.Marshal(value)
	if err != nil {
		logger.WithError(err).Error("Failed to marshal value for cache")
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if ttl == 0 {
		ttl = DefaultTTL
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.WithError(err).Error("Failed to set cache value")
		return apperrors.NewCacheError("SET", err)
	}

	logger.Debug("Cache value set successfully")
	return nil
}

// Get retrieves the raw stored value
func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation": "redis_get",
			"key":       key,
			"service":   "cache",
		}).WithError(err).Error("Failed to get cache value")
		return "", apperrors.NewCacheError("GET", err)
	}
	return val, nil
}

// GetJSON retrieves a value and unmarshals it into dest
func (r *RedisService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value for %s: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (r *RedisService) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperrors.NewCacheError("DEL", err)
	}
	return nil
}

// Expire sets TTL for a key
func (r *RedisService) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return apperrors.NewCacheError("EXPIRE", err)
	}
	return nil
}

// SetCache stores data wrapped with cache metadata
func (r *RedisService) SetCache(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}

	entry := CacheEntry{
		Data:      raw,
		Timestamp: time.Now().UTC(),
		TTL:       int(ttl.Seconds()),
		Version:   entryVersion,
	}
	return r.Set(ctx, cachePrefix+key, entry, ttl)
}

// GetCache retrieves data stored by SetCache; stale entries count as misses
func (r *RedisService) GetCache(ctx context.Context, key string, dest interface{}) error {
	var entry CacheEntry
	if err := r.GetJSON(ctx, cachePrefix+key, &entry); err != nil {
		return err
	}

	if entry.TTL > 0 && time.Since(entry.Timestamp) > time.Duration(entry.TTL)*time.Second {
		return ErrCacheMiss
	}

	return json.Unmarshal(entry.Data, dest)
}

// DeleteCache removes cached data
func (r *RedisService) DeleteCache(ctx context.Context, key string) error {
	return r.Delete(ctx, cachePrefix+key)
}

// SetSession stores session data
func (r *RedisService) SetSession(ctx context.Context, sessionID string, data interface{}, ttl time.Duration) error {
	logger := telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
		"operation":   "redis_set_session",
		"session_id":  sessionID,
		"ttl_seconds": ttl.Seconds(),
		"service":     "cache",
	})

	if err := r.Set(ctx, sessionPrefix+sessionID, data, ttl); err != nil {
		logger.WithError(err).Error("Failed to set session data")
		return err
	}

	logger.Debug("Session data set successfully")
	return nil
}

// GetSession retrieves session data
func (r *RedisService) GetSession(ctx context.Context, sessionID string, dest interface{}) error {
	err := r.GetJSON(ctx, sessionPrefix+sessionID, dest)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":  "redis_get_session",
			"session_id": sessionID,
			"service":    "cache",
		}).WithError(err).Warn("Failed to get session data")
	}
	return err
}

// DeleteSession removes session data
func (r *RedisService) DeleteSession(ctx context.Context, sessionID string) error {
	return r.Delete(ctx, sessionPrefix+sessionID)
}

// HealthCheck verifies Redis connectivity
func (r *RedisService) HealthCheck(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}

// GetStats returns keyspace hit/miss counts and connection info from INFO
func (r *RedisService) GetStats(ctx context.Context) map[string]interface{} {
	info, err := r.client.Info(ctx, "stats").Result()
	if err != nil {
		return map[string]interface{}{
			"error": err.Error(),
		}
	}

	stats := map[string]interface{}{
		"hits":        int64(0),
		"misses":      int64(0),
		"connections": 0,
		"hit_rate":    0.0,
	}

	hits := infoInt(info, "keyspace_hits")
	misses := infoInt(info, "keyspace_misses")
	stats["hits"] = hits
	stats["misses"] = misses
	if total := hits + misses; total > 0 {
		stats["hit_rate"] = float64(hits) / float64(total)
	}

	if clientInfo, err := r.client.Info(ctx, "clients").Result(); err == nil {
		stats["connections"] = int(infoInt(clientInfo, "connected_clients"))
	}

	return stats
}

func infoInt(info, field string) int64 {
	for _, line := range strings.Split(info, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || name != field {
			continue
		}
		n, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		return n
	}
	return 0
}

// Close closes the Redis connection
func (r *RedisService) Close() error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client
func (r *RedisService) GetClient() *redis.Client {
	if client, ok := r.client.(*redis.Client); ok {
		return client
	}
	return nil
}
