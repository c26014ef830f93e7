package server

import (
  "strings"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/voxnote/voxnote-backend/internal/handlers"
  "github.com/voxnote/voxnote-backend/internal/middleware"
  "github.com/voxnote/voxnote-backend/internal/utils"
)

type RouterConfig struct {
  MeetingHandler      *handlers.MeetingHandler
  ScenarioHandler     *handlers.ScenarioHandler
  NotificationHandler *handlers.NotificationHandler
  SSEHandler          *handlers.SSEHandler
  IdentityMiddleware  *middleware.IdentityMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  allowedOrigins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000", nil), ",")
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowedOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-User-ID"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  api.Use(cfg.IdentityMiddleware.RequireUser())
  {
    // Meetings
    api.POST("/meetings", cfg.MeetingHandler.Create)
    api.GET("/meetings", cfg.MeetingHandler.List)
    api.GET("/meetings/:id", cfg.MeetingHandler.Get)
    api.DELETE("/meetings/:id", cfg.MeetingHandler.Delete)
    api.POST("/meetings/:id/complete-upload", cfg.MeetingHandler.CompleteUpload)
    api.POST("/meetings/:id/retry", cfg.MeetingHandler.Retry)
    api.POST("/meetings/:id/validate", cfg.MeetingHandler.Validate)
    api.POST("/meetings/:id/reject", cfg.MeetingHandler.Reject)
    api.GET("/meetings/:id/errors", cfg.NotificationHandler.ListForMeeting)
    api.GET("/meetings/:id/interactions", cfg.MeetingHandler.Interactions)
    api.GET("/meetings/:id/job", cfg.MeetingHandler.Job)
    // Scenarios
    api.POST("/scenarios", cfg.ScenarioHandler.Create)
    api.GET("/scenarios/:id", cfg.ScenarioHandler.Get)
    // Notifications
    api.GET("/notifications", cfg.NotificationHandler.ListUnread)
    api.POST("/notifications/:id/read", cfg.NotificationHandler.MarkRead)
    // SSE
    api.GET("/sse/stream", cfg.SSEHandler.Stream)
  }

  return router
}
