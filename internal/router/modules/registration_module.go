package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/go-lms-registration/internal/interface/http"
	"github.com/oksasatya/go-lms-registration/internal/interface/middleware"
)

type RegistrationModule struct {
	Handler *handlers.RegistrationHandler
	Avatars *handlers.AvatarHandler
	Redis   *redis.Client
	// Allow exempts trusted callers from the per-IP limits; nil limits everyone.
	Allow middleware.AllowFunc
}

func NewRegistrationModule(h *handlers.RegistrationHandler, avatars *handlers.AvatarHandler, rdb *redis.Client) *RegistrationModule {
	return &RegistrationModule{Handler: h, Avatars: avatars, Redis: rdb}
}

func (m *RegistrationModule) Name() string { return "registration" }

func (m *RegistrationModule) Register(rg *gin.RouterGroup) {
	// Public endpoints with IP-based rate limits
	registerLimiter := middleware.RateLimit(m.Redis, 5, time.Minute, middleware.KeyByIPAndPath(), m.Allow)
	activateLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), m.Allow)
	avatarLimiter := middleware.RateLimit(m.Redis, 10, time.Minute, middleware.KeyByIPAndPath(), m.Allow)

	rg.POST("/registration", registerLimiter, m.Handler.Register)
	rg.POST("/activate-user", activateLimiter, m.Handler.Activate)
	rg.POST("/avatars", avatarLimiter, m.Avatars.Upload)
}
