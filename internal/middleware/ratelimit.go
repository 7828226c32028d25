package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/carelink/clinic-api/internal/ratelimit"
)

// RateLimit caps requests per client IP within a rolling window. The counter
// store is injected so an in-process cache and Redis are interchangeable.
func RateLimit(store ratelimit.Store, limit int64, window time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := store.Incr(c.Request.Context(), c.ClientIP(), window)
		if err != nil {
			// A broken limiter must not take the API down.
			log.Warn().Err(err).Msg("rate limit store unavailable")
			c.Next()
			return
		}
		if count > limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
			return
		}
		c.Next()
	}
}
