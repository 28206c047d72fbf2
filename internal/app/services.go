package app

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/services"
)

type Services struct {
	Auth            services.AuthService
	Settings        services.SettingsService
	SessionOverride services.SessionOverrideService
	LockOverride    services.LockOverrideService
	Plan            services.PlanService
	Attachment      services.AttachmentService
	Grading         services.GradingService
	Resolution      services.ResolutionService
}

func wireServices(db *gorm.DB, rdb *redis.Client, log *logger.Logger, r Repos) Services {
	log.Info("Wiring services...")
	settings := services.NewSettingsService(r.Settings, rdb, log)
	sessionOvr := services.NewSessionOverrideService(rdb, log)
	planSvc := services.NewPlanService(r.ActionPlan, r.Attachment, r.Timeline, r.LockOverride, settings, sessionOvr, log)
	return Services{
		Auth:            services.NewAuthService(r.User, r.UserToken, log),
		Settings:        settings,
		SessionOverride: sessionOvr,
		LockOverride:    services.NewLockOverrideService(r.LockOverride, log),
		Plan:            planSvc,
		Attachment:      services.NewAttachmentService(r.Attachment, planSvc, log),
		Grading:         services.NewGradingService(db, r.ActionPlan, r.Attachment, r.Timeline, settings, log),
		Resolution:      services.NewResolutionService(r.ActionPlan, r.Timeline, log),
	}
}
