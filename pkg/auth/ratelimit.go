package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LoginRateLimiter throttles login attempts per client IP over a sliding
// window. State is in-process only, matching the single-process design.
type LoginRateLimiter struct {
	limit    int
	window   time.Duration
	attempts map[string][]time.Time
	mu       sync.Mutex
}

func NewLoginRateLimiter(limit int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		limit:    limit,
		window:   window,
		attempts: make(map[string][]time.Time),
	}
}

// Allow records an attempt for key and reports whether it is within the
// limit.
func (rl *LoginRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)
	bucket := rl.attempts[key]
	kept := bucket[:0]
	for _, at := range bucket {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) >= rl.limit {
		rl.attempts[key] = kept
		return false
	}
	rl.attempts[key] = append(kept, now)
	return true
}

// Middleware applies the limiter to the wrapped route.
func (rl *LoginRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many login attempts, please retry later",
			})
			return
		}
		c.Next()
	}
}
