package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kertaswork/plantrack-backend/internal/domain/grading"
	"github.com/kertaswork/plantrack-backend/internal/domain/lock"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/statemachine"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/requestdata"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

var ErrPlanNotFound = errors.New("action plan not found")

// CreatePlanInput is the planning payload for a new action plan.
type CreatePlanInput struct {
	Name      string    `json:"name"`
	Indicator string    `json:"indicator"`
	Category  string    `json:"category"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	PicUserID uuid.UUID `json:"pic_user_id"`
}

// TransitionInput is one status-change request from a caller.
type TransitionInput struct {
	Target         string  `json:"target_status"`
	ProgressNote   string  `json:"progress_note"`
	ResolutionNote string  `json:"resolution_note"`
	Remark         *string `json:"remark"`

	BlockerCategory string `json:"blocker_category"`
	AttentionLevel  string `json:"attention_level"`
	BlockerReason   string `json:"blocker_reason"`

	FollowUp      string `json:"follow_up"`
	GapCategory   string `json:"gap_category"`
	GapAnalysis   string `json:"gap_analysis"`
	SpecifyReason string `json:"specify_reason"`
}

// ExecutionInput carries the always-writable fields outside the lifecycle.
type ExecutionInput struct {
	Remark *string `json:"remark"`
}

// PlanView is a plan row decorated with the caller-dependent derived state.
type PlanView struct {
	Plan          *types.ActionPlan `json:"plan"`
	DisplayStatus string            `json:"display_status"`
	EditMode      string            `json:"edit_mode"`
	Lock          lock.Result       `json:"lock"`
	Bucket        string            `json:"bucket"`
	// BucketFallback flags an unrecognized category that defaulted to the
	// low bucket, surfaced as a data-quality signal.
	BucketFallback bool `json:"bucket_fallback"`
	EvidenceCount  int  `json:"evidence_count"`
}

type PlanService interface {
	Create(ctx context.Context, in CreatePlanInput) (*types.ActionPlan, error)
	Get(ctx context.Context, id uuid.UUID) (*PlanView, error)
	List(ctx context.Context, filter repos.PlanFilter) ([]*PlanView, error)
	Timeline(ctx context.Context, id uuid.UUID) ([]*types.TimelineEntry, error)
	LockStatus(ctx context.Context, id uuid.UUID) (lock.Result, error)

	// Transition runs one status change through the full pipeline: fresh
	// read, lock verdict, engine validation, guarded write, audit append.
	Transition(ctx context.Context, id uuid.UUID, in TransitionInput) (*PlanView, error)
	UpdateExecution(ctx context.Context, id uuid.UUID, in ExecutionInput) (*PlanView, error)

	Submit(ctx context.Context, id uuid.UUID) (*PlanView, error)
	Recall(ctx context.Context, id uuid.UUID) (*PlanView, error)
}

type planService struct {
	planRepo       repos.ActionPlanRepo
	attachmentRepo repos.PlanAttachmentRepo
	timelineRepo   repos.TimelineRepo
	overrideRepo   repos.LockOverrideRepo
	settings       SettingsService
	sessionOvr     SessionOverrideService
	log            *logger.Logger
}

func NewPlanService(
	planRepo repos.ActionPlanRepo,
	attachmentRepo repos.PlanAttachmentRepo,
	timelineRepo repos.TimelineRepo,
	overrideRepo repos.LockOverrideRepo,
	settings SettingsService,
	sessionOvr SessionOverrideService,
	baseLog *logger.Logger,
) PlanService {
	return &planService{
		planRepo:       planRepo,
		attachmentRepo: attachmentRepo,
		timelineRepo:   timelineRepo,
		overrideRepo:   overrideRepo,
		settings:       settings,
		sessionOvr:     sessionOvr,
		log:            baseLog.With("service", "PlanService"),
	}
}

func callerFrom(ctx context.Context) (*requestdata.RequestData, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, &plan.PermissionError{Capability: "authenticate", Reason: "no authenticated caller on request"}
	}
	return rd, nil
}

func (s *planService) Create(ctx context.Context, in CreatePlanInput) (*types.ActionPlan, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if !rd.Capabilities.CanEditFull {
		return nil, &plan.PermissionError{Capability: "edit_full", Reason: "only planners can create action plans"}
	}
	if in.Name == "" {
		return nil, plan.NewValidationError("name", "a plan name is required")
	}
	if in.Month < 1 || in.Month > 12 {
		return nil, plan.NewValidationError("month", "month must be between 1 and 12")
	}
	if in.Year < 2000 || in.Year > 2200 {
		return nil, plan.NewValidationError("year", "year is out of range")
	}
	if !grading.Recognized(in.Category) {
		s.log.Warn("Unrecognized plan category, defaulting to low priority",
			"category", in.Category, "department_id", rd.DepartmentID.String())
	}

	// Creating into a closed reporting period follows the same temporal
	// rules as editing in one.
	res, err := s.lockFor(ctx, rd, plan.Snapshot{Month: in.Month, Year: in.Year, Submission: plan.SubmissionDraft, Status: plan.StatusOpen})
	if err != nil {
		return nil, err
	}
	if res.TemporalLocked && !res.Bypassed {
		return nil, &plan.PermissionError{Capability: "override_lock", Reason: res.Message}
	}

	row := &types.ActionPlan{
		ID:               uuid.New(),
		DepartmentID:     rd.DepartmentID,
		PicUserID:        in.PicUserID,
		Name:             in.Name,
		Indicator:        in.Indicator,
		Category:         in.Category,
		Month:            in.Month,
		Year:             in.Year,
		Status:           types.StatusOpen,
		SubmissionStatus: types.SubmissionDraft,
	}
	if _, err := s.planRepo.Create(ctx, nil, []*types.ActionPlan{row}); err != nil {
		return nil, wrapRemote("create plan", err)
	}
	s.log.Info("Plan created", "plan_id", row.ID.String(), "period", fmt.Sprintf("%d/%d", row.Month, row.Year))
	return row, nil
}

func (s *planService) Get(ctx context.Context, id uuid.UUID) (*PlanView, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	row, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, rd, row, snap)
}

func (s *planService) List(ctx context.Context, filter repos.PlanFilter) ([]*PlanView, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	// Department-scoped roles only ever see their own department; roles
	// with cross-department duties see everything.
	switch rd.Role {
	case types.RoleAdmin, types.RoleExecutive, types.RoleGrader:
	default:
		dept := rd.DepartmentID
		filter.DepartmentID = &dept
	}

	rows, err := s.planRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, wrapRemote("list plans", err)
	}
	views := make([]*PlanView, 0, len(rows))
	for _, row := range rows {
		count, err := s.attachmentRepo.CountByPlanID(ctx, nil, row.ID)
		if err != nil {
			return nil, wrapRemote("count evidence", err)
		}
		v, err := s.view(ctx, rd, row, toSnapshot(row, int(count)))
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *planService) Timeline(ctx context.Context, id uuid.UUID) ([]*types.TimelineEntry, error) {
	if _, err := callerFrom(ctx); err != nil {
		return nil, err
	}
	if _, _, err := s.loadSnapshot(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.timelineRepo.GetByPlanID(ctx, nil, id)
	if err != nil {
		return nil, wrapRemote("load timeline", err)
	}
	return entries, nil
}

func (s *planService) LockStatus(ctx context.Context, id uuid.UUID) (lock.Result, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return lock.Result{}, err
	}
	_, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return lock.Result{}, err
	}
	return s.lockFor(ctx, rd, snap)
}

func (s *planService) Transition(ctx context.Context, id uuid.UUID, in TransitionInput) (*PlanView, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	row, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	lockRes, err := s.lockFor(ctx, rd, snap)
	if err != nil {
		return nil, err
	}
	cfg, err := s.settings.StateMachineConfig(ctx)
	if err != nil {
		return nil, err
	}

	smIn := statemachine.Input{
		Target:         plan.Status(in.Target),
		ProgressNote:   in.ProgressNote,
		ResolutionNote: in.ResolutionNote,
		Remark:         in.Remark,
	}
	smIn.Blocker.Role = rd.Role
	smIn.Blocker.Category = in.BlockerCategory
	smIn.Blocker.Tier = in.AttentionLevel
	smIn.Blocker.Reason = in.BlockerReason
	smIn.FollowUp.FollowUp = plan.FollowUp(in.FollowUp)
	smIn.FollowUp.GapCategory = in.GapCategory
	smIn.FollowUp.GapAnalysis = in.GapAnalysis
	smIn.FollowUp.SpecifyReason = in.SpecifyReason

	lockState := plan.LockState{
		Locked:   lockRes.FieldsDisabled || lockRes.Bypassed,
		Bypassed: lockRes.Bypassed,
	}
	changes, err := statemachine.Transition(snap, smIn, lockState, rd.Capabilities, cfg)
	if err != nil {
		return nil, err
	}

	// A violated invariant here is an engine bug; refuse the write rather
	// than persist an inconsistent row.
	mins, err := s.settings.InvariantMins(ctx)
	if err != nil {
		return nil, err
	}
	next := applyChanges(snap, changes)
	if err := plan.CheckInvariants(next, mins); err != nil {
		s.log.Error("Transition produced inconsistent state, refusing write",
			"plan_id", id.String(), "target", in.Target, "error", err)
		return nil, fmt.Errorf("transition produced inconsistent state: %w", err)
	}

	updates := changesToUpdates(changes)
	if len(updates) > 0 {
		if err := s.commit(ctx, row, updates); err != nil {
			return nil, err
		}
	}
	s.appendTimeline(ctx, id, rd, changes.Timeline, lockRes)

	return s.refreshView(ctx, rd, id)
}

func (s *planService) UpdateExecution(ctx context.Context, id uuid.UUID, in ExecutionInput) (*PlanView, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Capabilities.ReadOnly {
		return nil, &plan.PermissionError{Capability: "update", Reason: "read-only callers cannot modify plans"}
	}
	row, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	lockRes, err := s.lockFor(ctx, rd, snap)
	if err != nil {
		return nil, err
	}
	if lockRes.FieldsDisabled {
		return nil, &plan.PermissionError{Capability: "override_lock", Reason: lockRes.Message}
	}

	updates := map[string]interface{}{}
	if in.Remark != nil {
		updates["remark"] = *in.Remark
	}
	if len(updates) > 0 {
		if err := s.commit(ctx, row, updates); err != nil {
			return nil, err
		}
	}
	return s.refreshView(ctx, rd, id)
}

func (s *planService) Submit(ctx context.Context, id uuid.UUID) (*PlanView, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Capabilities.ReadOnly {
		return nil, &plan.PermissionError{Capability: "submit", Reason: "read-only callers cannot submit plans"}
	}
	row, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Submission == plan.SubmissionSubmitted {
		return nil, &plan.ConflictError{Reason: "plan is already submitted"}
	}
	if err := s.commit(ctx, row, map[string]interface{}{"submission_status": types.SubmissionSubmitted}); err != nil {
		return nil, err
	}
	s.appendTimeline(ctx, id, rd, []statemachine.TimelineEntry{
		{Kind: types.TimelineComment, Message: "submitted for grading"},
	}, lock.Result{})
	return s.refreshView(ctx, rd, id)
}

// Recall withdraws a submission before anyone has acted on it. Once a grade
// or a pending drop exists the submission is no longer the owner's to pull
// back.
func (s *planService) Recall(ctx context.Context, id uuid.UUID) (*PlanView, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Capabilities.ReadOnly {
		return nil, &plan.PermissionError{Capability: "submit", Reason: "read-only callers cannot recall plans"}
	}
	row, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Submission != plan.SubmissionSubmitted {
		return nil, &plan.ConflictError{Reason: "plan is not submitted"}
	}
	if snap.Graded() || snap.IsDropPending {
		return nil, &plan.ConflictError{Reason: "submission was already acted on and cannot be recalled"}
	}
	if err := s.commit(ctx, row, map[string]interface{}{"submission_status": types.SubmissionDraft}); err != nil {
		return nil, err
	}
	s.appendTimeline(ctx, id, rd, []statemachine.TimelineEntry{
		{Kind: types.TimelineComment, Message: "submission recalled by owner"},
	}, lock.Result{})
	return s.refreshView(ctx, rd, id)
}

func (s *planService) loadSnapshot(ctx context.Context, id uuid.UUID) (*types.ActionPlan, plan.Snapshot, error) {
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

// lockFor assembles the lock input for one caller: global settings, the
// month's schedule entry, and the caller's session date override.
func (s *planService) lockFor(ctx context.Context, rd *requestdata.RequestData, snap plan.Snapshot) (lock.Result, error) {
	settings, err := s.settings.LockSettings(ctx)
	if err != nil {
		return lock.Result{}, err
	}
	var monthOvr *lock.Override
	ovrRow, err := s.overrideRepo.GetByPeriod(ctx, nil, snap.Month, snap.Year)
	if err != nil {
		return lock.Result{}, wrapRemote("load lock override", err)
	}
	if ovrRow != nil {
		monthOvr = &lock.Override{ForceOpen: ovrRow.ForceOpen, LockDate: ovrRow.LockDate}
	}
	dateOvr := false
	if rd.Capabilities.CanOverrideLock {
		dateOvr, _ = s.sessionOvr.Enabled(ctx, rd.UserID)
	}
	return lock.Compute(snap, lock.Input{
		Caps:          rd.Capabilities,
		Settings:      settings,
		MonthOverride: monthOvr,
		DateOverride:  dateOvr,
		Now:           time.Now(),
	}), nil
}

func (s *planService) commit(ctx context.Context, row *types.ActionPlan, updates map[string]interface{}) error {
	err := s.planRepo.UpdateGuarded(ctx, nil, row.ID, row.UpdatedAt, updates)
	if errors.Is(err, repos.ErrStaleUpdate) {
		return &plan.ConflictError{}
	}
	return wrapRemote("update plan", err)
}

// appendTimeline records the audit entries after the row commit. The write
// already happened; an audit failure is logged, never turned into a caller
// error.
func (s *planService) appendTimeline(ctx context.Context, id uuid.UUID, rd *requestdata.RequestData, entries []statemachine.TimelineEntry, lockRes lock.Result) {
	if len(entries) == 0 {
		return
	}
	var meta map[string]interface{}
	if lockRes.Bypassed {
		meta = map[string]interface{}{"marker": types.MarkerDateOverride, "bypassed_by": rd.UserID.String()}
	}
	rows := timelineRows(id, rd.UserID, entries, meta)
	if err := s.timelineRepo.Append(ctx, nil, rows); err != nil {
		s.log.Error("Timeline append failed after commit", "plan_id", id.String(), "error", err)
	}
}

func (s *planService) refreshView(ctx context.Context, rd *requestdata.RequestData, id uuid.UUID) (*PlanView, error) {
	row, snap, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, rd, row, snap)
}

func (s *planService) view(ctx context.Context, rd *requestdata.RequestData, row *types.ActionPlan, snap plan.Snapshot) (*PlanView, error) {
	lockRes, err := s.lockFor(ctx, rd, snap)
	if err != nil {
		return nil, err
	}
	mode := plan.EditModeFor(rd.Capabilities, lockRes.FieldsDisabled)
	return &PlanView{
		Plan:           row,
		DisplayStatus:  plan.DisplayStatus(snap),
		EditMode:       mode.String(),
		Lock:           lockRes,
		Bucket:         string(grading.Classify(snap.Category)),
		BucketFallback: !grading.Recognized(snap.Category),
		EvidenceCount:  snap.EvidenceCount,
	}, nil
}

// applyChanges folds a validated change set back onto a snapshot for the
// pre-write invariant check.
func applyChanges(s plan.Snapshot, ch statemachine.Changes) plan.Snapshot {
	if ch.ExecutionOnly {
		return s
	}
	s.Status = ch.Status
	s.Detail = ch.Detail
	if ch.SetResolutionType {
		s.ResolutionType = ch.ResolutionType
		s.IsDropPending = ch.IsDropPending
	}
	if ch.SetNeedsExecReview {
		s.NeedsExecReview = ch.NeedsExecReview
	}
	return s
}
