package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/sessions"
	"github.com/hertz-contrib/sessions/cookie"

	"TrafficWatch/config"
	"TrafficWatch/internal/handler"
	"TrafficWatch/internal/middleware"
)

func Register(h *server.Hertz) {
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	store := cookie.NewStore([]byte(config.Cfg.SessionSecret))
	h.Use(sessions.New("tw-session", store))

	// Ride provider OAuth. No version prefix, the provider redirect URI
	// points here directly.
	auth := h.Group("/auth")
	{
		auth.GET("/ola", handler.RideAuthRedirect)
		auth.GET("/ola/callback", handler.RideAuthCallback)
		auth.POST("/ola/save-token", handler.SaveRideToken)
		auth.GET("/ola/status", handler.RideAuthStatus)
	}

	v1 := h.Group("/v1")

	alerts := v1.Group("/alerts")
	alerts.Use(middleware.RateLimitMiddleware())
	{
		alerts.POST("", handler.CreateAlert)
		alerts.GET("/users/:username", handler.GetUserAlerts)
		alerts.POST("/cancel", handler.CancelAlert)
		alerts.POST("/reactivate", handler.ReactivateAlert)
	}

	scheduler := v1.Group("/scheduler")
	{
		scheduler.GET("/status", handler.GetSchedulerStatus)
		scheduler.GET("/stats", handler.GetSchedulerStats)
		scheduler.POST("/run", handler.TriggerSweep)
	}
}
