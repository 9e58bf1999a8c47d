package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// CallerKey is where the resolved caller principal lands in the gin
// context. Identity resolution itself is external to the engine; the
// header carries an already-resolved principal.
const CallerKey = "caller"

const callerHeader = "X-Caller"

// CallerResolver requires the X-Caller header and exposes it to handlers.
func CallerResolver() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(callerHeader)
		if caller == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Caller header required"})
			c.Abort()
			return
		}
		c.Set(CallerKey, caller)
		c.Next()
	}
}

type RateLimiter struct {
	callers map[string]time.Time
	mu      sync.Mutex
	limit   time.Duration
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		callers: make(map[string]time.Time),
		limit:   limit,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(callerHeader)
		if caller == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Caller header required"})
			c.Abort()
			return
		}
		r.mu.Lock()
		last, exists := r.callers[caller]
		if exists && time.Since(last) < r.limit {
			r.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		r.callers[caller] = time.Now()
		r.mu.Unlock()
		c.Next()
	}
}
