package cache

import (
	"context"
	"errors"
	"time"

	"github.com/placesfinder/placesfinder/internal/places"
)

// OperationRecorder counts cache operations by result.
type OperationRecorder interface {
	RecordCacheOperation(operation, result string)
}

// DetailCache stores place detail lookups in Redis keyed by place ID.
type DetailCache struct {
	redis   *RedisService
	ttl     time.Duration
	metrics OperationRecorder
}

// NewDetailCache creates a detail cache; metrics may be nil.
func NewDetailCache(redis *RedisService, ttl time.Duration, metrics OperationRecorder) *DetailCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DetailCache{redis: redis, ttl: ttl, metrics: metrics}
}

func detailKey(placeID string) string {
	return "detail:" + placeID
}

func (c *DetailCache) GetDetail(ctx context.Context, placeID string) (*places.PlaceDetail, bool, error) {
	var detail places.PlaceDetail
	err := c.redis.GetCache(ctx, detailKey(placeID), &detail)
	switch {
	case err == nil:
		c.record("get", "hit")
		return &detail, true, nil
	case errors.Is(err, ErrCacheMiss):
		c.record("get", "miss")
		return nil, false, nil
	default:
		c.record("get", "error")
		return nil, false, err
	}
}

func (c *DetailCache) SetDetail(ctx context.Context, placeID string, detail places.PlaceDetail) error {
	if err := c.redis.SetCache(ctx, detailKey(placeID), detail, c.ttl); err != nil {
		c.record("set", "error")
		return err
	}
	c.record("set", "ok")
	return nil
}

func (c *DetailCache) record(operation, result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(operation, result)
	}
}
