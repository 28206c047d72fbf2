package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/domain/grading"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/resolution"
	"github.com/kertaswork/plantrack-backend/internal/domain/statemachine"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// GradeInput is one scoring request against a submitted plan.
type GradeInput struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// GradeResult reports the evaluation. Pending means strict grading failed
// and nothing was committed; the grader must confirm a verdict.
type GradeResult struct {
	Outcome grading.Outcome   `json:"outcome"`
	Pending bool              `json:"pending"`
	Plan    *types.ActionPlan `json:"plan,omitempty"`
}

// VerdictRequest confirms a pending strict-mode failure. Score repeats the
// failing score so the confirmation is evaluated against fresh state, not a
// remembered one. The gap fields feed the failure analysis that a committed
// NotAchieved must carry.
type VerdictRequest struct {
	Verdict      string `json:"verdict"`
	Score        int    `json:"score"`
	Feedback     string `json:"feedback"`
	RevisionDays int    `json:"revision_days"`

	GapCategory   string `json:"gap_category"`
	GapAnalysis   string `json:"gap_analysis"`
	SpecifyReason string `json:"specify_reason"`
}

type GradingService interface {
	// Queue lists submitted plans awaiting a grade.
	Queue(ctx context.Context) ([]*types.ActionPlan, error)
	Grade(ctx context.Context, id uuid.UUID, in GradeInput) (*GradeResult, error)
	ConfirmVerdict(ctx context.Context, id uuid.UUID, in VerdictRequest) (*types.ActionPlan, error)
}

type gradingService struct {
	db             *gorm.DB
	planRepo       repos.ActionPlanRepo
	attachmentRepo repos.PlanAttachmentRepo
	timelineRepo   repos.TimelineRepo
	settings       SettingsService
	log            *logger.Logger
}

func NewGradingService(db *gorm.DB, planRepo repos.ActionPlanRepo, attachmentRepo repos.PlanAttachmentRepo, timelineRepo repos.TimelineRepo, settings SettingsService, baseLog *logger.Logger) GradingService {
	return &gradingService{
		db:             db,
		planRepo:       planRepo,
		attachmentRepo: attachmentRepo,
		timelineRepo:   timelineRepo,
		settings:       settings,
		log:            baseLog.With("service", "GradingService"),
	}
}

func (s *gradingService) Queue(ctx context.Context) ([]*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanGrade && !rd.Capabilities.CanApproveDrop {
		return nil, &plan.PermissionError{Capability: "grade"}
	}
	submitted := types.SubmissionSubmitted
	rows, err := s.planRepo.List(ctx, nil, repos.PlanFilter{SubmissionStatus: &submitted})
	if err != nil {
		return nil, wrapRemote("list grading queue", err)
	}
	queue := make([]*types.ActionPlan, 0, len(rows))
	for _, row := range rows {
		if row.QualityScore == nil && !row.IsDropPending {
			queue = append(queue, row)
		}
	}
	return queue, nil
}

func (s *gradingService) Grade(ctx context.Context, id uuid.UUID, in GradeInput) (*GradeResult, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanGrade {
		return nil, &plan.PermissionError{Capability: "grade"}
	}

	row, snap, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	// The recall check runs against server state at decision time, never
	// against what the grader's screen showed.
	if snap.Submission != plan.SubmissionSubmitted {
		return nil, &plan.RecalledError{PlanName: snap.Name}
	}
	if snap.IsDropPending {
		return nil, &plan.ConflictError{Reason: "plan is awaiting drop approval, not a grade"}
	}
	// Grading finalizes a terminal status, so the same evidence floor that
	// guards terminal transitions applies here.
	if snap.EvidenceCount < 1 {
		return nil, plan.NewValidationError("evidence", "at least one evidence attachment is required")
	}

	policy, err := s.settings.GradingPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if !grading.Recognized(snap.Category) {
		s.log.Warn("Grading a plan with unrecognized category, low bucket assumed",
			"plan_id", id.String(), "category", snap.Category)
	}
	out, err := grading.Evaluate(snap, in.Score, policy)
	if err != nil {
		return nil, err
	}

	if out.VerdictRequired {
		// Nothing commits until the grader confirms a verdict.
		return &GradeResult{Outcome: out, Pending: true}, nil
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":        string(out.Status),
		"quality_score": out.Score,
		"reviewed_by":   rd.UserID,
		"reviewed_at":   now,
	}
	if in.Feedback != "" {
		updates["admin_feedback"] = in.Feedback
	}
	clearStatusClusters(updates)
	if err := s.commit(ctx, nil, row, updates); err != nil {
		return nil, err
	}

	entry := statemachine.TimelineEntry{
		Kind:    types.TimelineComment,
		Message: fmt.Sprintf("graded %d/%d, achieved", out.Score, out.Cap),
	}
	if out.Overwrite {
		entry.Marker = types.MarkerRegrade
	}
	s.append(ctx, id, rd.UserID, entry)

	updated, _, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GradeResult{Outcome: out, Plan: updated}, nil
}

func (s *gradingService) ConfirmVerdict(ctx context.Context, id uuid.UUID, in VerdictRequest) (*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanGrade {
		return nil, &plan.PermissionError{Capability: "grade"}
	}

	row, snap, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Submission != plan.SubmissionSubmitted {
		return nil, &plan.RecalledError{PlanName: snap.Name}
	}
	if snap.EvidenceCount < 1 {
		return nil, plan.NewValidationError("evidence", "at least one evidence attachment is required")
	}

	policy, err := s.settings.GradingPolicy(ctx)
	if err != nil {
		return nil, err
	}
	out, err := grading.Evaluate(snap, in.Score, policy)
	if err != nil {
		return nil, err
	}
	if !out.VerdictRequired {
		return nil, &plan.ConflictError{Reason: "score no longer fails the target; re-grade instead of confirming a verdict"}
	}

	now := time.Now()
	verdict, err := grading.ApplyVerdict(snap, grading.VerdictInput{
		Verdict:      grading.Verdict(in.Verdict),
		Feedback:     in.Feedback,
		RevisionDays: in.RevisionDays,
	}, policy, now)
	if err != nil {
		return nil, err
	}

	switch {
	case verdict.ClearScore:
		err = s.commitRevision(ctx, rd.UserID, row, verdict, now)
	case verdict.CommitNotAchieved:
		err = s.commitFailure(ctx, rd.UserID, row, snap, out, verdict, in, now)
	default:
		err = plan.NewValidationError("verdict", fmt.Sprintf("unknown verdict %q", in.Verdict))
	}
	if err != nil {
		return nil, err
	}

	updated, _, err := s.fresh(ctx, id)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// commitRevision reopens the plan: score cleared, submission back in the
// owner's hands, and a grace window that outranks the temporal lock.
func (s *gradingService) commitRevision(ctx context.Context, graderID uuid.UUID, row *types.ActionPlan, v grading.VerdictOutcome, now time.Time) error {
	updates := map[string]interface{}{
		"quality_score":           nil,
		"status":                  types.StatusOnProgress,
		"submission_status":       types.SubmissionDraft,
		"temporary_unlock_expiry": v.UnlockUntil,
		"admin_feedback":          v.Feedback,
		"reviewed_by":             graderID,
		"reviewed_at":             now,
	}
	clearStatusClusters(updates)
	if err := s.commit(ctx, nil, row, updates); err != nil {
		return err
	}
	s.append(ctx, row.ID, graderID, statemachine.TimelineEntry{
		Kind:    types.TimelineComment,
		Message: fmt.Sprintf("returned for revision until %s", v.UnlockUntil.Format("2006-01-02")),
	})
	return nil
}

// commitFailure finalizes NotAchieved for a confirmed failing grade. The
// grader supplies the gap analysis; a force carry-over also spawns the
// penalized successor in the same transaction.
func (s *gradingService) commitFailure(ctx context.Context, graderID uuid.UUID, row *types.ActionPlan, snap plan.Snapshot, out grading.Outcome, v grading.VerdictOutcome, in VerdictRequest, now time.Time) error {
	resPolicy, err := s.settings.ResolutionPolicy(ctx)
	if err != nil {
		return err
	}
	gap, err := validateGap(in, resPolicy)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":         string(types.StatusNotAchieved),
		"quality_score":  out.Score,
		"gap_category":   gap.GapCategory,
		"gap_analysis":   gap.GapAnalysis,
		"specify_reason": gap.SpecifyReason,
		"admin_feedback": v.Feedback,
		"reviewed_by":    graderID,
		"reviewed_at":    now,

		"blocker_category": nil,
		"blocker_reason":   nil,
		"attention_level":  nil,
		"is_drop_pending":  false,
	}

	message := fmt.Sprintf("graded %d/%d, marked failed", out.Score, out.Cap)
	if !v.SpawnSuccessor {
		updates["resolution_type"] = nil
		if err := s.commit(ctx, nil, row, updates); err != nil {
			return err
		}
		s.append(ctx, row.ID, graderID, statemachine.TimelineEntry{Kind: types.TimelineComment, Message: message})
		return nil
	}

	updates["resolution_type"] = types.ResolutionCarriedOver
	successorCap := v.SuccessorCap
	spec := resolution.BuildSuccessor(snap, row.Indicator, &successorCap)
	successor := successorRow(spec)

	commitBoth := func(tx *gorm.DB) error {
		if err := s.commit(ctx, tx, row, updates); err != nil {
			return err
		}
		if _, err := s.planRepo.Create(ctx, tx, []*types.ActionPlan{successor}); err != nil {
			return wrapRemote("create carry-over successor", err)
		}
		return nil
	}
	if s.db != nil {
		err = s.db.Transaction(commitBoth)
	} else {
		err = commitBoth(nil)
	}
	if err != nil {
		return err
	}
	s.log.Info("Force carry-over confirmed", "plan_id", row.ID.String(),
		"successor_id", successor.ID.String(), "successor_cap", successorCap)
	s.append(ctx, row.ID, graderID, statemachine.TimelineEntry{
		Kind:    types.TimelineComment,
		Message: fmt.Sprintf("graded %d/%d, carried over to %d/%d with ceiling %d", out.Score, out.Cap, spec.Month, spec.Year, successorCap),
	})
	return nil
}

// validateGap checks the grader-supplied failure analysis against the same
// rules a department's own follow-up would face.
func validateGap(in VerdictRequest, p resolution.Policy) (plan.NotAchieved, error) {
	d, err := resolution.Decide(resolution.Input{
		FollowUp:      plan.FollowUpCarryOver,
		GapCategory:   in.GapCategory,
		GapAnalysis:   in.GapAnalysis,
		SpecifyReason: in.SpecifyReason,
	}, grading.BucketLow, p)
	if err != nil {
		return plan.NotAchieved{}, err
	}
	return d.Detail, nil
}

func (s *gradingService) fresh(ctx context.Context, id uuid.UUID) (*types.ActionPlan, plan.Snapshot, error) {
	row, err := s.planRepo.GetByID(ctx, nil, id)
	if err != nil {
		if gormNotFound(err) {
			return nil, plan.Snapshot{}, ErrPlanNotFound
		}
		return nil, plan.Snapshot{}, wrapRemote("load plan", err)
	}
	count, err := s.attachmentRepo.CountByPlanID(ctx, nil, id)
	if err != nil {
		return nil, plan.Snapshot{}, wrapRemote("count evidence", err)
	}
	return row, toSnapshot(row, int(count)), nil
}

func (s *gradingService) commit(ctx context.Context, tx *gorm.DB, row *types.ActionPlan, updates map[string]interface{}) error {
	err := s.planRepo.UpdateGuarded(ctx, tx, row.ID, row.UpdatedAt, updates)
	if errors.Is(err, repos.ErrStaleUpdate) {
		return &plan.ConflictError{}
	}
	return wrapRemote("update plan", err)
}

func (s *gradingService) append(ctx context.Context, planID, actorID uuid.UUID, entry statemachine.TimelineEntry) {
	rows := timelineRows(planID, actorID, []statemachine.TimelineEntry{entry}, nil)
	if err := s.timelineRepo.Append(ctx, nil, rows); err != nil {
		s.log.Error("Timeline append failed after commit", "plan_id", planID.String(), "error", err)
	}
}

// clearStatusClusters removes both status-specific field clusters; a fresh
// grade always lands on a clean row.
func clearStatusClusters(updates map[string]interface{}) {
	for _, col := range []string{"blocker_category", "blocker_reason", "attention_level", "gap_category", "gap_analysis", "specify_reason"} {
		if _, ok := updates[col]; !ok {
			updates[col] = nil
		}
	}
}
