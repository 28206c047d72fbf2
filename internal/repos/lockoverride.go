package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

type LockOverrideRepo interface {
	// GetByPeriod returns the schedule entry for (month, year), or
	// (nil, nil) when none exists.
	GetByPeriod(ctx context.Context, tx *gorm.DB, month, year int) (*types.LockOverride, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.LockOverride, error)
	Upsert(ctx context.Context, tx *gorm.DB, override *types.LockOverride) error
	DeleteByPeriod(ctx context.Context, tx *gorm.DB, month, year int) error
}

type lockOverrideRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLockOverrideRepo(db *gorm.DB, baseLog *logger.Logger) LockOverrideRepo {
	return &lockOverrideRepo{db: db, log: baseLog.With("repo", "LockOverrideRepo")}
}

func (r *lockOverrideRepo) GetByPeriod(ctx context.Context, tx *gorm.DB, month, year int) (*types.LockOverride, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.LockOverride
	err := transaction.WithContext(ctx).
		Where("month = ? AND year = ?", month, year).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *lockOverrideRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.LockOverride, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.LockOverride
	if err := transaction.WithContext(ctx).
		Order("year DESC, month DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lockOverrideRepo) Upsert(ctx context.Context, tx *gorm.DB, override *types.LockOverride) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	existing, err := r.GetByPeriod(ctx, transaction, override.Month, override.Year)
	if err != nil {
		return err
	}
	if existing != nil {
		override.ID = existing.ID
		override.CreatedAt = existing.CreatedAt
	}
	return transaction.WithContext(ctx).Save(override).Error
}

func (r *lockOverrideRepo) DeleteByPeriod(ctx context.Context, tx *gorm.DB, month, year int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("month = ? AND year = ?", month, year).
		Delete(&types.LockOverride{}).Error
}
