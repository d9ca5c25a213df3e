package handlers

import (
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"energenius/pkg/services"

	"github.com/gin-gonic/gin"
)

// RateLimits はエンドポイントごとのレート制限
type RateLimits struct {
	Login        *services.RateLimiter
	Logout       *services.RateLimiter
	CheckSession *services.RateLimiter
	Upload       *services.RateLimiter
	Predict      *services.RateLimiter
	Export       *services.RateLimiter
}

// DefaultRateLimits は各エンドポイントの既定の制限を返します。
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Login:        services.NewRateLimiter(3, time.Minute),
		Logout:       services.NewRateLimiter(30, time.Minute),
		CheckSession: services.NewRateLimiter(60, time.Minute),
		Upload:       services.NewRateLimiter(5, time.Minute),
		Predict:      services.NewRateLimiter(5, time.Minute),
		Export:       services.NewRateLimiter(20, time.Hour),
	}
}

// RateLimit はクライアントIPごとにリクエスト数を制限するミドルウェアです。
// limiterがnilの場合は何もしません。
func RateLimit(limiter *services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ok, wait := limiter.Allow(c.ClientIP())
		if !ok {
			retryAfter := int(math.Ceil(wait.Seconds()))
			log.Printf("⚠️ [ratelimit] %s %s から制限超過 (retry after %ds)", c.Request.URL.Path, c.ClientIP(), retryAfter)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
