package modules

import (
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-lms-registration/internal/interface/middleware"
	"github.com/oksasatya/go-lms-registration/pkg/helpers"
	"github.com/oksasatya/go-lms-registration/pkg/response"
)

// DebugModule exposes expvar counters and a dependency health probe.
// Both are rate limited per IP except for private networks.
type DebugModule struct {
	Redis *redis.Client
}

func NewDebugModule(rdb *redis.Client) *DebugModule { return &DebugModule{Redis: rdb} }

func (m *DebugModule) Name() string { return "debug" }

func (m *DebugModule) Register(rg *gin.RouterGroup) {
	rl := middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())
	rg.GET("/debug/vars", rl, gin.WrapH(expvar.Handler()))
	rg.GET("/debug/health", rl, m.health)
}

func (m *DebugModule) health(c *gin.Context) {
	status := gin.H{"redis": "disabled"}
	if m.Redis != nil {
		if err := helpers.PingRedis(c.Request.Context(), m.Redis); err != nil {
			status["redis"] = err.Error()
			response.Error[any](c, http.StatusServiceUnavailable, "degraded", status)
			return
		}
		status["redis"] = "ok"
	}
	response.Success(c, http.StatusOK, status, "ok", nil)
}
