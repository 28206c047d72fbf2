package app

import (
	"github.com/kertaswork/plantrack-backend/internal/handlers"
	"github.com/kertaswork/plantrack-backend/internal/logger"
)

type Handlers struct {
	Healthcheck *handlers.HealthcheckHandler
	Auth        *handlers.AuthHandler
	Plan        *handlers.PlanHandler
	Grading     *handlers.GradingHandler
	Resolution  *handlers.ResolutionHandler
	Settings    *handlers.SettingsHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Healthcheck: handlers.NewHealthcheckHandler(),
		Auth:        handlers.NewAuthHandler(s.Auth),
		Plan:        handlers.NewPlanHandler(s.Plan, s.Attachment),
		Grading:     handlers.NewGradingHandler(s.Grading),
		Resolution:  handlers.NewResolutionHandler(s.Resolution),
		Settings:    handlers.NewSettingsHandler(s.Settings, s.LockOverride, s.SessionOverride),
	}
}
