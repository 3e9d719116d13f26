package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablet-sync-backend/config"
	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/mw"
	"tablet-sync-backend/internal/ratelimit"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, limiter ratelimit.Limiter, cfg *config.Config, log zerolog.Logger) *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(apperr.JSONTagName)
	}

	r := gin.New()
	r.Use(mw.RequestID(), mw.Logger(log), mw.Recovery(log))
	r.NoRoute(func(c *gin.Context) {
		mw.Abort(c, apperr.NotFound("route"))
	})

	r.GET("/healthz", h.Health)

	tablet := r.Group("/tablet")
	{
		tablet.POST("/auth/login", mw.LoginRateLimiter(rate.Limit(cfg.RateLimit.LoginPerSecond), cfg.RateLimit.LoginBurst), h.Login)

		// Authentication runs before the limiter so the counter is keyed by
		// device, never by an unverified token.
		authed := tablet.Group("")
		authed.Use(mw.DeviceAuth(h.sessions))
		{
			authed.POST("/auth/refresh", h.Refresh)
			authed.POST("/auth/logout", h.Logout)

			limited := authed.Group("")
			limited.Use(mw.DeviceRateLimit(limiter))
			{
				limited.POST("/heartbeat", h.Heartbeat)

				limited.GET("/orders", h.ListOrders)
				limited.GET("/orders/:id", h.GetOrder)
				limited.POST("/orders/:id", h.AcknowledgeOrder)
				limited.PATCH("/orders/:id/status", h.UpdateOrderStatus)
			}
		}
	}

	admin := r.Group("/admin")
	admin.Use(mw.AdminAuth(cfg.Admin.APIKey))
	{
		admin.POST("/devices", h.RegisterDevice)
		admin.GET("/devices", h.ListDevices)
		admin.GET("/devices/:uuid", h.GetDevice)
		admin.PATCH("/devices/:uuid", h.UpdateDevice)
		admin.DELETE("/devices/:uuid", h.DeleteDevice)
		admin.POST("/devices/:uuid/rotate-key", h.RotateDeviceKey)
		admin.PUT("/devices/:uuid/config", h.PutDeviceConfig)
	}

	return r
}
