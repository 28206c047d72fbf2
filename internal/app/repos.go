package app

import (
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
)

type Repos struct {
	User         repos.UserRepo
	UserToken    repos.UserTokenRepo
	ActionPlan   repos.ActionPlanRepo
	Attachment   repos.PlanAttachmentRepo
	Timeline     repos.TimelineRepo
	LockOverride repos.LockOverrideRepo
	Settings     repos.PolicySettingsRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:         repos.NewUserRepo(db, log),
		UserToken:    repos.NewUserTokenRepo(db, log),
		ActionPlan:   repos.NewActionPlanRepo(db, log),
		Attachment:   repos.NewPlanAttachmentRepo(db, log),
		Timeline:     repos.NewTimelineRepo(db, log),
		LockOverride: repos.NewLockOverrideRepo(db, log),
		Settings:     repos.NewPolicySettingsRepo(db, log),
	}
}
