package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"StillStudying/internal/handler"
	"StillStudying/internal/middleware"
)

func Register(h *server.Hertz) {

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())

	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := h.Group("/v1")
	v1.Use(middleware.IdentityMiddleware())
	v1.Use(middleware.RateLimitMiddleware())

	// 日程路由
	schedules := v1.Group("/schedules")
	{
		schedules.POST("", handler.CreateSchedule)
		schedules.GET("", handler.ListSchedules)
		schedules.GET("/:schedule_id", handler.GetSchedule)
		schedules.PATCH("/:schedule_id", handler.UpdateSchedule)
		schedules.DELETE("/:schedule_id", handler.DeactivateSchedule)
	}

	// 学习会话路由，REST 兜底
	sessions := v1.Group("/sessions")
	{
		sessions.POST("", handler.StartSession)
		sessions.POST("/check-in", handler.RespondCheckIn)
		sessions.POST("/end", handler.EndSession)
		sessions.GET("/current", handler.ResumeSession)
	}

	// 会话实时通道
	v1.GET("/ws", handler.WebSocketHandler)
}
