package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/kertaswork/plantrack-backend/internal/handlers"
	"github.com/kertaswork/plantrack-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string

	AuthMiddleware *middleware.AuthMiddleware

	HealthcheckHandler *handlers.HealthcheckHandler
	AuthHandler        *handlers.AuthHandler
	PlanHandler        *handlers.PlanHandler
	GradingHandler     *handlers.GradingHandler
	ResolutionHandler  *handlers.ResolutionHandler
	SettingsHandler    *handlers.SettingsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)
	router.POST("/api/auth/register", cfg.AuthHandler.Register)
	router.POST("/api/auth/login", cfg.AuthHandler.Login)
	router.POST("/api/auth/refresh", cfg.AuthHandler.Refresh)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.POST("/auth/logout", cfg.AuthHandler.Logout)

	// Plans
	api.POST("/plans", cfg.PlanHandler.Create)
	api.GET("/plans", cfg.PlanHandler.List)
	api.GET("/plans/:id", cfg.PlanHandler.Get)
	api.GET("/plans/:id/timeline", cfg.PlanHandler.Timeline)
	api.GET("/plans/:id/lock", cfg.PlanHandler.LockStatus)
	api.POST("/plans/:id/transition", cfg.PlanHandler.Transition)
	api.PATCH("/plans/:id/execution", cfg.PlanHandler.UpdateExecution)
	api.POST("/plans/:id/submit", cfg.PlanHandler.Submit)
	api.POST("/plans/:id/recall", cfg.PlanHandler.Recall)
	api.POST("/plans/:id/attachments", cfg.PlanHandler.AddAttachments)
	api.GET("/plans/:id/attachments", cfg.PlanHandler.ListAttachments)

	// Grading
	api.GET("/grading/queue", cfg.GradingHandler.Queue)
	api.POST("/plans/:id/grade", cfg.GradingHandler.Grade)
	api.POST("/plans/:id/verdict", cfg.GradingHandler.ConfirmVerdict)

	// Resolution
	api.GET("/drops/queue", cfg.ResolutionHandler.DropQueue)
	api.POST("/plans/:id/drop/approve", cfg.ResolutionHandler.ApproveDrop)
	api.POST("/plans/:id/drop/reject", cfg.ResolutionHandler.RejectDrop)
	api.POST("/plans/:id/carry-over", cfg.ResolutionHandler.CarryOver)
	api.GET("/review/queue", cfg.ResolutionHandler.ReviewQueue)
	api.POST("/plans/:id/review/resolve", cfg.ResolutionHandler.ResolveReview)

	// Policy administration
	api.GET("/settings", cfg.SettingsHandler.Get)
	api.PUT("/settings", cfg.SettingsHandler.Save)
	api.GET("/settings/lock-overrides", cfg.SettingsHandler.ListLockOverrides)
	api.PUT("/settings/lock-overrides", cfg.SettingsHandler.UpsertLockOverride)
	api.DELETE("/settings/lock-overrides/:year/:month", cfg.SettingsHandler.DeleteLockOverride)
	api.POST("/session/date-override", cfg.SettingsHandler.EnableDateOverride)
	api.DELETE("/session/date-override", cfg.SettingsHandler.DisableDateOverride)

	return router
}

// SplitOrigins parses a comma-separated origin list from configuration.
func SplitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
