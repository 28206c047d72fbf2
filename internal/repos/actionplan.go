package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// ErrStaleUpdate is returned when an optimistic update matched no rows: the
// plan changed (or vanished) after the caller read it.
var ErrStaleUpdate = errors.New("plan was modified concurrently")

// PlanFilter narrows List queries.
type PlanFilter struct {
	DepartmentID     *uuid.UUID
	Status           *string
	SubmissionStatus *string
	Month            *int
	Year             *int
	// CarriedFromID finds the successor materialized from a given plan.
	CarriedFromID *uuid.UUID
	// ExecReview restricts to plans flagged for the executive review
	// queue.
	ExecReview *bool
	// DropPending restricts to plans awaiting drop approval.
	DropPending *bool
}

type ActionPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plans []*types.ActionPlan) ([]*types.ActionPlan, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActionPlan, error)
	List(ctx context.Context, tx *gorm.DB, filter PlanFilter) ([]*types.ActionPlan, error)
	// UpdateGuarded applies updates only if the row's updated_at still
	// equals seenUpdatedAt; returns ErrStaleUpdate otherwise. This is the
	// per-record serialization point for concurrent actors.
	UpdateGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, seenUpdatedAt time.Time, updates map[string]interface{}) error
}

type actionPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActionPlanRepo(db *gorm.DB, baseLog *logger.Logger) ActionPlanRepo {
	return &actionPlanRepo{db: db, log: baseLog.With("repo", "ActionPlanRepo")}
}

func (r *actionPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.ActionPlan) ([]*types.ActionPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.ActionPlan{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *actionPlanRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActionPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.ActionPlan
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *actionPlanRepo) List(ctx context.Context, tx *gorm.DB, filter PlanFilter) ([]*types.ActionPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.ActionPlan{})
	if filter.DepartmentID != nil {
		q = q.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.SubmissionStatus != nil {
		q = q.Where("submission_status = ?", *filter.SubmissionStatus)
	}
	if filter.CarriedFromID != nil {
		q = q.Where("carried_from_id = ?", *filter.CarriedFromID)
	}
	if filter.Month != nil {
		q = q.Where("month = ?", *filter.Month)
	}
	if filter.Year != nil {
		q = q.Where("year = ?", *filter.Year)
	}
	if filter.ExecReview != nil {
		q = q.Where("needs_exec_review = ?", *filter.ExecReview)
	}
	if filter.DropPending != nil {
		q = q.Where("is_drop_pending = ?", *filter.DropPending)
	}
	var results []*types.ActionPlan
	if err := q.Order("year DESC, month DESC, created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *actionPlanRepo) UpdateGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, seenUpdatedAt time.Time, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ActionPlan{}).
		Where("id = ? AND updated_at = ?", id, seenUpdatedAt).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleUpdate
	}
	return nil
}
