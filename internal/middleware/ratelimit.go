package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/placesfinder/placesfinder/internal/errors"
)

// RateLimiter represents a simple token bucket rate limiter
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	lastRefill time.Time
	lastSeen   time.Time
	refillRate time.Duration
	now        func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return newRateLimiter(maxTokens, refillRate, time.Now)
}

func newRateLimiter(maxTokens int, refillRate time.Duration, now func() time.Time) *RateLimiter {
	t := now()
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		lastRefill: t,
		lastSeen:   t,
		refillRate: refillRate,
		now:        now,
	}
}

// Allow checks if a request is allowed
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.lastSeen = now

	if elapsed := now.Sub(rl.lastRefill); elapsed >= rl.refillRate && rl.refillRate > 0 {
		tokensToAdd := int(elapsed / rl.refillRate)
		rl.tokens = min(rl.maxTokens, rl.tokens+tokensToAdd)
		rl.lastRefill = rl.lastRefill.Add(time.Duration(tokensToAdd) * rl.refillRate)
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) idleSince(t time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastSeen.Before(t)
}

// RateLimitMiddleware keeps one bucket per client IP
type RateLimitMiddleware struct {
	mu         sync.RWMutex
	limiters   map[string]*RateLimiter
	maxTokens  int
	refillRate time.Duration
	now        func() time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware
func NewRateLimitMiddleware(maxTokens int, refillRate time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiters:   make(map[string]*RateLimiter),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// Middleware returns the gin handler; rejected requests get a rate_limit error
func (m *RateLimitMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.getLimiter(c.ClientIP()).Allow() {
			c.Header("Retry-After", retryAfter(m.refillRate))
			Abort(c, apperrors.NewRateLimitError(m.maxTokens, m.refillRate.String()))
			return
		}
		c.Next()
	}
}

func (m *RateLimitMiddleware) getLimiter(key string) *RateLimiter {
	m.mu.RLock()
	limiter, exists := m.limiters[key]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if limiter, exists = m.limiters[key]; !exists {
			limiter = newRateLimiter(m.maxTokens, m.refillRate, m.now)
			m.limiters[key] = limiter
		}
		m.mu.Unlock()
	}

	return limiter
}

// Cleanup drops buckets idle for longer than maxIdle and returns how many were removed
func (m *RateLimitMiddleware) Cleanup(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, limiter := range m.limiters {
		if limiter.idleSince(cutoff) {
			delete(m.limiters, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine runs Cleanup every interval until ctx is done
func (m *RateLimitMiddleware) StartCleanupRoutine(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup(maxIdle)
			}
		}
	}()
}

func retryAfter(d time.Duration) string {
	seconds := int(d.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
