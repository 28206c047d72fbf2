package app

import (
	"github.com/gin-gonic/gin"

	"github.com/kertaswork/plantrack-backend/internal/server"
)

func wireRouter(cfg Config, h Handlers, m Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: server.SplitOrigins(cfg.AllowedOrigins),

		AuthMiddleware: m.Auth,

		HealthcheckHandler: h.Healthcheck,
		AuthHandler:        h.Auth,
		PlanHandler:        h.Plan,
		GradingHandler:     h.Grading,
		ResolutionHandler:  h.Resolution,
		SettingsHandler:    h.Settings,
	})
}
