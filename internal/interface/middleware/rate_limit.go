package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-lms-registration/pkg/response"
)

// ipFromCtx returns the address stored by RealIP, or gin's view of it.
func ipFromCtx(c *gin.Context) string {
	if ip := c.GetString(RealIPKey); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func routeOf(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return c.Request.URL.Path
}

// KeyFunc maps a request to its rate limit bucket.
type KeyFunc func(c *gin.Context) string

// KeyByIP shares one bucket per client across all routes.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:ip:" + ipFromCtx(c)
	}
}

// KeyByIPAndPath gives each client a bucket per route.
func KeyByIPAndPath() KeyFunc {
	return func(c *gin.Context) string {
		return "rl:path:" + routeOf(c) + ":ip:" + ipFromCtx(c)
	}
}

// fixedWindow increments the bucket, starts its window on the first hit
// and returns {count, remaining window in ms}.
var fixedWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`)

// AllowFunc reports whether a request skips the limiter.
type AllowFunc func(*gin.Context) bool

// RateLimit allows limit requests per window for each key. Redis errors let
// the request through. A nil rdb or a non-positive limit disables it.
func RateLimit(rdb redis.Scripter, limit int, window time.Duration, keyFn KeyFunc, allow AllowFunc) gin.HandlerFunc {
	if isNilScripter(rdb) || limit <= 0 || window <= 0 || keyFn == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (allow != nil && allow(c)) {
			c.Next()
			return
		}

		res, err := fixedWindow.Run(c.Request.Context(), rdb, []string{keyFn(c)}, window.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			c.Next()
			return
		}
		count, pttl := res[0], res[1]
		reset := 0
		if pttl > 0 {
			reset = int(math.Ceil(float64(pttl) / 1000))
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, limit-int(count))))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if int(count) > limit {
			if reset > 0 {
				c.Header("Retry-After", strconv.Itoa(reset))
			}
			response.Fail(c, http.StatusTooManyRequests, "rate limit exceeded", "rate_limited", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func isNilScripter(s redis.Scripter) bool {
	if s == nil {
		return true
	}
	rdb, ok := s.(*redis.Client)
	return ok && rdb == nil
}
