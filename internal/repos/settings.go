package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

type PolicySettingsRepo interface {
	// Get returns the settings row, or (nil, nil) when none exists yet.
	Get(ctx context.Context, tx *gorm.DB) (*types.PolicySettings, error)
	Save(ctx context.Context, tx *gorm.DB, settings *types.PolicySettings) error
}

type policySettingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPolicySettingsRepo(db *gorm.DB, baseLog *logger.Logger) PolicySettingsRepo {
	return &policySettingsRepo{db: db, log: baseLog.With("repo", "PolicySettingsRepo")}
}

func (r *policySettingsRepo) Get(ctx context.Context, tx *gorm.DB) (*types.PolicySettings, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PolicySettings
	if err := transaction.WithContext(ctx).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *policySettingsRepo) Save(ctx context.Context, tx *gorm.DB, settings *types.PolicySettings) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(settings).Error
}
