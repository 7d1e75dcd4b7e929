package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"

	"fraservotes-backend/cache"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Rate limiting runs at two levels: a Redis token bucket shared across
// server instances and an in-process limiter per client IP. The
// per-client limiters also serve as the only limit in mock mode.
var (
	globalLimiter    *cache.TokenBucketRateLimiter
	clientLimiters   sync.Map // client IP -> *rate.Limiter
	rateLimitEnabled bool
	clientRate       = 10
	clientBurst      = 20
)

// InitRateLimiters reads the rate-limit configuration from the
// environment. Disabled unless ENABLE_RATE_LIMIT=true.
func InitRateLimiters() {
	rateLimitEnabled = os.Getenv("ENABLE_RATE_LIMIT") == "true"
	if !rateLimitEnabled {
		return
	}

	globalRate := 100
	if v := os.Getenv("GLOBAL_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			globalRate = n
		}
	}
	if v := os.Getenv("CLIENT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			clientRate = n
			clientBurst = n * 2
		}
	}

	globalLimiter = cache.NewTokenBucketRateLimiter("global_api", globalRate, globalRate*2)
	log.Printf("rate limiters initialized: global=%d/s, client=%d/s", globalRate, clientRate)
}

func limiterFor(clientIP string) *rate.Limiter {
	if v, ok := clientLimiters.Load(clientIP); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(clientRate), clientBurst)
	actual, _ := clientLimiters.LoadOrStore(clientIP, limiter)
	return actual.(*rate.Limiter)
}

// RateLimitMiddleware rejects requests over the configured budget with
// 429. A no-op when rate limiting is disabled.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rateLimitEnabled {
			c.Next()
			return
		}

		if globalLimiter != nil {
			allowed, err := globalLimiter.Allow(c)
			if err != nil {
				log.Printf("global rate limit check failed: %v", err)
			} else if !allowed {
				c.AbortWithStatusJSON(http.StatusTooManyRequests,
					gin.H{"code": "RATE_LIMITED", "error": "too many requests"})
				return
			}
		}

		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"code": "RATE_LIMITED", "error": "too many requests"})
			return
		}

		c.Next()
	}
}
