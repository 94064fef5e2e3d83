package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is an in-memory fixed-window limiter. Each key gets a
// token budget that refills when its window elapses.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   int
	window  time.Duration
}

type clientBucket struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window
// per key. A background sweep evicts keys idle for two windows, so the
// map stays bounded by the set of recently active clients.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientBucket),
		limit:   limit,
		window:  window,
	}
	go rl.sweep(window * 2)
	return rl
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, c := range rl.clients {
			if now.Sub(c.lastReset) > rl.window*2 {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Allow consumes one token for key, reporting whether the request fits
// in the current window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[key]
	if !ok {
		rl.clients[key] = &clientBucket{tokens: rl.limit - 1, lastReset: now}
		return true
	}
	if now.Sub(c.lastReset) >= rl.window {
		c.tokens = rl.limit - 1
		c.lastReset = now
		return true
	}
	if c.tokens > 0 {
		c.tokens--
		return true
	}
	return false
}

// Remaining reports how many requests key has left in its window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok || time.Since(c.lastReset) >= rl.window {
		return rl.limit
	}
	return c.tokens
}

// limiterKey prefers the authenticated operator over the source
// address. Several bursars often share one school network, so keying by
// IP alone would make them share a budget.
func limiterKey(c *gin.Context, prefix string) string {
	if userID := GetJWTUserID(c); userID != "" {
		return prefix + "user:" + userID
	}
	return prefix + c.ClientIP()
}

func rateLimited(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

// RateLimit enforces the global per-client budget and exposes the
// X-RateLimit headers on allowed responses.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := limiterKey(c, "")
		if !limiter.Allow(key) {
			rateLimited(c, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later.")
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}

// WriteRateLimit is the stricter budget for mutating endpoints such as
// payment recording. Keys carry a "write:" prefix so the budget is
// isolated from the global limiter, and blocked responses include a
// Retry-After header.
func WriteRateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := limiterKey(c, "write:")
		if !limiter.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(int(limiter.window.Seconds())))
			rateLimited(c, "WRITE_RATE_LIMIT_EXCEEDED", "Too many write requests. Please try again later.")
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
