package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/userapi/internal/cache"
	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/logger"
)

const rateLimitKeyPrefix = "ratelimit:"

var errTooManyRequests = apperrors.New("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)

// rateLimitNow is the clock used to pick the current window.
var rateLimitNow = time.Now

// RateLimit limits requests per (clientIP, route) within a fixed window using the
// cache counter. Each window counts under its own key, so a counter whose expiry
// could not be set stops applying when the window ends. When the cache is
// unavailable requests are let through.
func RateLimit(counter *cache.Facade, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		bucket := rateLimitNow().UnixNano() / int64(window)
		key := rateLimitKeyPrefix + c.ClientIP() + "|" + route + "|" + strconv.FormatInt(bucket, 10)
		ctx := c.Request.Context()

		count, outcome := counter.Increment(ctx, key)
		if outcome != cache.OutcomeOK {
			c.Next()
			return
		}
		if count == 1 {
			if counter.Expire(ctx, key, window) != cache.OutcomeOK {
				logger.WithModule("http").Warn("rate limit counter has no expiry", zap.String("key", key))
			}
		}

		remaining := maxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Window", strconv.Itoa(int(window.Seconds())))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Unix(0, (bucket+1)*int64(window)).Unix(), 10))

		if int(count) > maxRequests {
			Abort(c, errTooManyRequests)
			return
		}

		c.Next()
	}
}
