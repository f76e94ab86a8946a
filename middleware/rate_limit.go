package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"lof_arb_api/logger"
)

// RateLimiter allows each client IP one request per interval. The interval
// matches the cache refresh window, so a well-behaved client polling faster
// than the data can change gets a 429 with the time left to wait.
type RateLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	interval time.Duration
}

// NewRateLimiter creates a rate limiter with the given per-client interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		lastCall: make(map[string]time.Time),
		interval: interval,
	}
	go rl.startCleanup()
	return rl
}

// startCleanup periodically drops entries old enough to be irrelevant.
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-2 * rl.interval)
		for ip, at := range rl.lastCall {
			if at.Before(cutoff) {
				delete(rl.lastCall, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// check records the call and returns the remaining wait when the client is
// over its budget.
func (rl *RateLimiter) check(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if last, ok := rl.lastCall[ip]; ok {
		if wait := rl.interval - now.Sub(last); wait > 0 {
			return false, wait
		}
	}
	rl.lastCall[ip] = now
	return true, 0
}

// Middleware returns the gin handler enforcing the per-client interval.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, wait := rl.check(ip)
		if !allowed {
			logger.WithComponent("api").WithFields(logger.Fields{
				"ip":   ip,
				"wait": wait.Round(time.Millisecond).String(),
			}).Warn("client over rate limit")
			c.Header("Retry-After", fmt.Sprintf("%d", int(wait.Seconds())+1))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": fmt.Sprintf("too many requests, retry in %.0f seconds", wait.Seconds()),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
