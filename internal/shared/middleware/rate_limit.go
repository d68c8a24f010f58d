package middleware

import (
	"sync"
	"time"

	"library-lending/internal/shared/response"
	"library-lending/internal/shared/utils"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	PerMinute    int
	Burst        int
	MaxClients   int
	ClientExpiry time.Duration
}

// IPRateLimiter keeps one token bucket per client IP in an expiring LRU.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	maxClients := cfg.MaxClients
	if maxClients <= 0 {
		maxClients = 1000
	}
	expiry := cfg.ClientExpiry
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(cfg.PerMinute/10, 1)
	}

	return &IPRateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxClients, nil, expiry),
		rate:     rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:    burst,
	}
}

// Allow consumes one token for key.
func (rl *IPRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(key, limiter)
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// RateLimit rejects requests with 429 once the caller's bucket is empty.
func RateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := utils.ExtractClientIP(c)
		if !rl.Allow(ip) {
			log.Warn().
				Str("request_id", c.GetString("request_id")).
				Str("ip", ip).
				Str("path", c.FullPath()).
				Msg("rate limit exceeded")

			response.TooManyRequests(c, "Too many requests, slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
