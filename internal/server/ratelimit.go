package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	// rateLimitRequests per rateLimitWindow is the budget every client
	// IP gets across all /api routes.
	rateLimitRequests = 100
	rateLimitWindow   = 15 * time.Minute

	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterStaleThreshold  = 2 * rateLimitWindow
)

// rateLimiter implements per-IP rate limiting using golang.org/x/time/rate.
// Cleanup of stale entries happens inline during allow() calls.
type rateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

// visitor holds a rate limiter and last-seen time for a single IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter creates a rate limiter. limit is the refill rate; burst
// is the maximum (and initial) token allowance per IP.
func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       limit,
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

// newAPIRateLimiter returns the limiter for the /api routes: a full
// bucket of rateLimitRequests, refilling over rateLimitWindow.
func newAPIRateLimiter() *rateLimiter {
	return newRateLimiter(rate.Every(rateLimitWindow/rateLimitRequests), rateLimitRequests)
}

// allow checks if a request from the given IP is allowed.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Periodic cleanup of stale entries
	if now.Sub(rl.lastCleanup) > rateLimiterCleanupInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rateLimiterStaleThreshold {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[ip] = &visitor{
			limiter:  limiter,
			lastSeen: now,
		}
		limiter.Allow()
		return true
	}

	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimitMiddleware rejects requests from IPs that exhausted their
// token budget
func RateLimitMiddleware(rl *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.allow(ip) {
			slog.Warn("rate limit exceeded",
				"ip", ip,
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"request_id", c.GetString("request_id"),
			)
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
			})
			return
		}
		c.Next()
	}
}
