package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
)

// Middleware rejects requests over the public limit with 429. route names
// the bucket and the metric label; it is never derived from the URL so ids
// stay out of both.
func Middleware(limiter *PublicLimiter, route string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := limiter.Allow(c.Request.Context(), route, c.ClientIP())
		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if result.Allowed {
			c.Next()
			return
		}

		m.RecordRateLimitDenied(c.Request.Context(), route)
		seconds := int(math.Ceil(result.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"type":    "rate_limited",
				"message": "too many requests, retry later",
			},
		})
	}
}
