package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// TimelineRepo is append-only by contract; there is no update or delete.
type TimelineRepo interface {
	Append(ctx context.Context, tx *gorm.DB, entries []*types.TimelineEntry) error
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.TimelineEntry, error)
}

type timelineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTimelineRepo(db *gorm.DB, baseLog *logger.Logger) TimelineRepo {
	return &timelineRepo{db: db, log: baseLog.With("repo", "TimelineRepo")}
}

func (r *timelineRepo) Append(ctx context.Context, tx *gorm.DB, entries []*types.TimelineEntry) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(entries) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&entries).Error
}

func (r *timelineRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.TimelineEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.TimelineEntry
	if err := transaction.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
