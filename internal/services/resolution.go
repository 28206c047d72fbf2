package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/domain/escalation"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/resolution"
	"github.com/kertaswork/plantrack-backend/internal/domain/statemachine"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// ResolutionService acts on failed plans after the follow-up decision:
// approving or rejecting pending drops, materializing carry-over
// successors, and closing items in the executive review queue.
type ResolutionService interface {
	DropQueue(ctx context.Context) ([]*types.ActionPlan, error)
	ApproveDrop(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error)
	RejectDrop(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error)

	// CarryOver materializes next month's successor for a carried-over
	// plan. Idempotent per plan: a second call is a conflict.
	CarryOver(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error)

	ReviewQueue(ctx context.Context) ([]*types.ActionPlan, error)
	ResolveReview(ctx context.Context, id uuid.UUID, note string) (*types.ActionPlan, error)
}

type resolutionService struct {
	planRepo     repos.ActionPlanRepo
	timelineRepo repos.TimelineRepo
	log          *logger.Logger
}

func NewResolutionService(planRepo repos.ActionPlanRepo, timelineRepo repos.TimelineRepo, baseLog *logger.Logger) ResolutionService {
	return &resolutionService{
		planRepo:     planRepo,
		timelineRepo: timelineRepo,
		log:          baseLog.With("service", "ResolutionService"),
	}
}

func (s *resolutionService) DropQueue(ctx context.Context) ([]*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanApproveDrop {
		return nil, &plan.PermissionError{Capability: "approve_drop"}
	}
	pending := true
	rows, err := s.planRepo.List(ctx, nil, repos.PlanFilter{DropPending: &pending})
	if err != nil {
		return nil, wrapRemote("list drop queue", err)
	}
	return rows, nil
}

func (s *resolutionService) ApproveDrop(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanApproveDrop {
		return nil, &plan.PermissionError{Capability: "approve_drop"}
	}
	row, snap, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	review, err := resolution.ApproveDrop(snap)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          string(review.Status),
		"is_drop_pending": review.IsDropPending,
		"resolution_type": string(*review.ResolutionType),
		"reviewed_by":     rd.UserID,
		"reviewed_at":     now,
	}
	if review.ZeroScore {
		updates["quality_score"] = 0
	}
	if err := s.commit(ctx, nil, row, updates); err != nil {
		return nil, err
	}
	s.append(ctx, id, rd.UserID, statemachine.TimelineEntry{
		Kind:    types.TimelineComment,
		Message: "drop approved, plan finalized at score 0",
	})
	return s.reload(ctx, id)
}

// RejectDrop sends the plan back to Open and obligates a carry-over. The
// gap fields are cleared with the status so the row stays consistent.
func (s *resolutionService) RejectDrop(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanApproveDrop {
		return nil, &plan.PermissionError{Capability: "approve_drop"}
	}
	row, snap, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	review, err := resolution.RejectDrop(snap)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":          string(review.Status),
		"is_drop_pending": review.IsDropPending,
		"resolution_type": nil,
		"gap_category":    nil,
		"gap_analysis":    nil,
		"specify_reason":  nil,
		"reviewed_by":     rd.UserID,
		"reviewed_at":     now,
	}
	if err := s.commit(ctx, nil, row, updates); err != nil {
		return nil, err
	}
	message := "drop rejected, plan reopened"
	if review.ObligeCarryOver {
		message = "drop rejected, plan reopened and must be carried over"
	}
	s.append(ctx, id, rd.UserID, statemachine.TimelineEntry{Kind: types.TimelineComment, Message: message})
	return s.reload(ctx, id)
}

func (s *resolutionService) CarryOver(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Capabilities.ReadOnly || !rd.Capabilities.CanUpdateStatus {
		return nil, &plan.PermissionError{Capability: "update_status"}
	}
	row, snap, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Status != plan.StatusNotAchieved {
		return nil, &plan.ConflictError{Reason: "only a failed plan can be carried over"}
	}
	if snap.IsDropPending {
		return nil, &plan.ConflictError{Reason: "plan is awaiting drop approval"}
	}
	if snap.ResolutionType == nil || *snap.ResolutionType != plan.ResolutionCarriedOver {
		return nil, &plan.ConflictError{Reason: "plan was not resolved as carry-over"}
	}

	existing, err := s.planRepo.List(ctx, nil, repos.PlanFilter{CarriedFromID: &row.ID})
	if err != nil {
		return nil, wrapRemote("check existing successor", err)
	}
	if len(existing) > 0 {
		return nil, &plan.ConflictError{Reason: "a successor for this plan already exists"}
	}

	spec := resolution.BuildSuccessor(snap, row.Indicator, nil)
	successor := successorRow(spec)
	if _, err := s.planRepo.Create(ctx, nil, []*types.ActionPlan{successor}); err != nil {
		return nil, wrapRemote("create carry-over successor", err)
	}
	s.log.Info("Carry-over successor created", "plan_id", row.ID.String(),
		"successor_id", successor.ID.String(), "period", fmt.Sprintf("%d/%d", spec.Month, spec.Year))
	s.append(ctx, id, rd.UserID, statemachine.TimelineEntry{
		Kind:    types.TimelineComment,
		Message: fmt.Sprintf("carried over to %d/%d", spec.Month, spec.Year),
	})
	return successor, nil
}

func (s *resolutionService) ReviewQueue(ctx context.Context) ([]*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	// Executives read the queue; only approvers act on it.
	if !rd.Capabilities.CanApproveDrop && !rd.Capabilities.ReadOnly {
		return nil, &plan.PermissionError{Capability: "review_queue"}
	}
	flagged := true
	rows, err := s.planRepo.List(ctx, nil, repos.PlanFilter{ExecReview: &flagged})
	if err != nil {
		return nil, wrapRemote("list review queue", err)
	}
	return rows, nil
}

// ResolveReview clears the executive alert flag. The blocker itself is
// untouched; leaving Blocked still goes through the state machine.
func (s *resolutionService) ResolveReview(ctx context.Context, id uuid.UUID, note string) (*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanApproveDrop {
		return nil, &plan.PermissionError{Capability: "resolve_review"}
	}
	row, snap, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snap.NeedsExecReview {
		return nil, &plan.ConflictError{Reason: "plan is not in the review queue"}
	}
	if err := s.commit(ctx, nil, row, map[string]interface{}{"needs_exec_review": false}); err != nil {
		return nil, err
	}
	s.append(ctx, id, rd.UserID, statemachine.TimelineEntry{
		Kind:    types.TimelineComment,
		Message: escalation.ReviewQueueNote(rd.Role, note),
	})
	return s.reload(ctx, id)
}

func (s *resolutionService) fresh(ctx context.Context, id uuid.UUID) (*types.ActionPlan, plan.Snapshot, error) {
	row, err := s.planRepo.GetByID(ctx, nil, id)
	if err != nil {
		if gormNotFound(err) {
			return nil, plan.Snapshot{}, ErrPlanNotFound
		}
		return nil, plan.Snapshot{}, wrapRemote("load plan", err)
	}
	return row, toSnapshot(row, 0), nil
}

func (s *resolutionService) reload(ctx context.Context, id uuid.UUID) (*types.ActionPlan, error) {
	row, err := s.planRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, wrapRemote("reload plan", err)
	}
	return row, nil
}

func (s *resolutionService) commit(ctx context.Context, tx *gorm.DB, row *types.ActionPlan, updates map[string]interface{}) error {
	err := s.planRepo.UpdateGuarded(ctx, tx, row.ID, row.UpdatedAt, updates)
	if errors.Is(err, repos.ErrStaleUpdate) {
		return &plan.ConflictError{}
	}
	return wrapRemote("update plan", err)
}

func (s *resolutionService) append(ctx context.Context, planID, actorID uuid.UUID, entry statemachine.TimelineEntry) {
	rows := timelineRows(planID, actorID, []statemachine.TimelineEntry{entry}, nil)
	if err := s.timelineRepo.Append(ctx, nil, rows); err != nil {
		s.log.Error("Timeline append failed after commit", "plan_id", planID.String(), "error", err)
	}
}
