package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

type PlanAttachmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, attachments []*types.PlanAttachment) ([]*types.PlanAttachment, error)
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanAttachment, error)
	CountByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int64, error)
	DeleteByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) error
}

type planAttachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) PlanAttachmentRepo {
	return &planAttachmentRepo{db: db, log: baseLog.With("repo", "PlanAttachmentRepo")}
}

func (r *planAttachmentRepo) Create(ctx context.Context, tx *gorm.DB, attachments []*types.PlanAttachment) ([]*types.PlanAttachment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(attachments) == 0 {
		return []*types.PlanAttachment{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *planAttachmentRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanAttachment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PlanAttachment
	if err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *planAttachmentRepo) CountByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.PlanAttachment{}).
		Where("plan_id = ?", planID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *planAttachmentRepo) DeleteByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Delete(&types.PlanAttachment{}).Error
}
