package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// LockOverrideInput is one monthly schedule entry.
type LockOverrideInput struct {
	Month     int        `json:"month"`
	Year      int        `json:"year"`
	ForceOpen bool       `json:"force_open"`
	LockDate  *time.Time `json:"lock_date"`
}

// LockOverrideService manages the per-month lock schedule that takes
// precedence over the derived cutoff.
type LockOverrideService interface {
	List(ctx context.Context) ([]*types.LockOverride, error)
	Upsert(ctx context.Context, in LockOverrideInput) (*types.LockOverride, error)
	Delete(ctx context.Context, month, year int) error
}

type lockOverrideService struct {
	repo repos.LockOverrideRepo
	log  *logger.Logger
}

func NewLockOverrideService(repo repos.LockOverrideRepo, baseLog *logger.Logger) LockOverrideService {
	return &lockOverrideService{repo: repo, log: baseLog.With("service", "LockOverrideService")}
}

func requireLockAdmin(ctx context.Context) error {
	rd, err := callerFrom(ctx)
	if err != nil {
		return err
	}
	if !rd.Capabilities.CanOverrideLock || rd.Capabilities.ReadOnly {
		return &plan.PermissionError{Capability: "override_lock"}
	}
	return nil
}

func (s *lockOverrideService) List(ctx context.Context) ([]*types.LockOverride, error) {
	if err := requireLockAdmin(ctx); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, nil)
	if err != nil {
		return nil, wrapRemote("list lock overrides", err)
	}
	return rows, nil
}

func (s *lockOverrideService) Upsert(ctx context.Context, in LockOverrideInput) (*types.LockOverride, error) {
	if err := requireLockAdmin(ctx); err != nil {
		return nil, err
	}
	if in.Month < 1 || in.Month > 12 {
		return nil, plan.NewValidationError("month", "month must be between 1 and 12")
	}
	if !in.ForceOpen && in.LockDate == nil {
		return nil, plan.NewValidationError("lock_date", "either force_open or a lock date is required")
	}

	row := &types.LockOverride{
		ID:        uuid.New(),
		Month:     in.Month,
		Year:      in.Year,
		ForceOpen: in.ForceOpen,
		LockDate:  in.LockDate,
	}
	if existing, err := s.repo.GetByPeriod(ctx, nil, in.Month, in.Year); err != nil {
		return nil, wrapRemote("load lock override", err)
	} else if existing != nil {
		row.ID = existing.ID
	}
	if err := s.repo.Upsert(ctx, nil, row); err != nil {
		return nil, wrapRemote("save lock override", err)
	}
	s.log.Info("Lock override saved", "month", in.Month, "year", in.Year, "force_open", in.ForceOpen)
	return row, nil
}

func (s *lockOverrideService) Delete(ctx context.Context, month, year int) error {
	if err := requireLockAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteByPeriod(ctx, nil, month, year); err != nil {
		return wrapRemote("delete lock override", err)
	}
	s.log.Info("Lock override removed", "month", month, "year", year)
	return nil
}
