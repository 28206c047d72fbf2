package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kertaswork/plantrack-backend/internal/domain/escalation"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/requestdata"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

func newPlanService(planRepo *fakePlanRepo, attRepo *fakeAttachmentRepo, tlRepo *fakeTimelineRepo) PlanService {
	return NewPlanService(planRepo, attRepo, tlRepo, &fakeOverrideRepo{}, testSettings(), NewSessionOverrideService(nil, testLogger()), testLogger())
}

func TestTransitionProgressUpdate(t *testing.T) {
	row := draftPlan(types.StatusOpen)
	planRepo := newFakePlanRepo(row)
	tlRepo := &fakeTimelineRepo{}
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), tlRepo)

	view, err := svc.Transition(ctxForRole(types.RolePIC), row.ID, TransitionInput{
		Target:       types.StatusOnProgress,
		ProgressNote: "kickoff meeting held, vendor shortlist done",
	})
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if view.Plan.Status != types.StatusOnProgress {
		t.Fatalf("status = %q, want %q", view.Plan.Status, types.StatusOnProgress)
	}
	entries, _ := tlRepo.GetByPlanID(context.Background(), nil, row.ID)
	if len(entries) != 1 || entries[0].Kind != types.TimelineProgressUpdate {
		t.Fatalf("timeline = %+v, want one progress_update entry", entries)
	}
}

func TestTransitionBlockedRoundTrip(t *testing.T) {
	row := draftPlan(types.StatusOpen)
	planRepo := newFakePlanRepo(row)
	tlRepo := &fakeTimelineRepo{}
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), tlRepo)
	ctx := ctxForRole(types.RolePIC)

	if _, err := svc.Transition(ctx, row.ID, TransitionInput{
		Target:       types.StatusOnProgress,
		ProgressNote: "started execution this week",
	}); err != nil {
		t.Fatalf("to on_progress: %v", err)
	}

	view, err := svc.Transition(ctx, row.ID, TransitionInput{
		Target:          types.StatusBlocked,
		BlockerCategory: "Vendor",
		AttentionLevel:  escalation.TierManager,
		BlockerReason:   "vendor has not shipped the replacement parts",
	})
	if err != nil {
		t.Fatalf("to blocked: %v", err)
	}
	if view.Plan.Status != types.StatusBlocked {
		t.Fatalf("status = %q, want blocked", view.Plan.Status)
	}
	if view.Plan.BlockerCategory == nil || *view.Plan.BlockerCategory != "Vendor" {
		t.Fatalf("blocker category not persisted: %+v", view.Plan)
	}

	view, err = svc.Transition(ctx, row.ID, TransitionInput{
		Target:         types.StatusOnProgress,
		ResolutionNote: "parts arrived, work resumed",
	})
	if err != nil {
		t.Fatalf("resolve blocker: %v", err)
	}
	if view.Plan.BlockerCategory != nil || view.Plan.BlockerReason != nil {
		t.Fatalf("blocker fields survived the exit from blocked: %+v", view.Plan)
	}
	entries, _ := tlRepo.GetByPlanID(context.Background(), nil, row.ID)
	last := entries[len(entries)-1]
	if last.Kind != types.TimelineBlockerResolved || last.Marker != types.MarkerResolutionNote {
		t.Fatalf("last entry = kind %q marker %q, want blocker_resolved/resolution_note", last.Kind, last.Marker)
	}
}

func TestTransitionStaleRowIsConflict(t *testing.T) {
	row := draftPlan(types.StatusOpen)
	planRepo := newFakePlanRepo(row)
	planRepo.stale = true
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.Transition(ctxForRole(types.RolePIC), row.ID, TransitionInput{
		Target:       types.StatusOnProgress,
		ProgressNote: "progress since last month",
	})
	if !plan.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestTransitionClosedPeriodRefused(t *testing.T) {
	row := draftPlan(types.StatusOpen)
	// Reporting period long closed.
	row.Month, row.Year = 1, 2020
	planRepo := newFakePlanRepo(row)
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.Transition(ctxForRole(types.RolePIC), row.ID, TransitionInput{
		Target:       types.StatusOnProgress,
		ProgressNote: "progress against an old plan",
	})
	var perm *plan.PermissionError
	if !asErr(err, &perm) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
	got, gerr := planRepo.GetByID(context.Background(), nil, row.ID)
	if gerr != nil || got.Status != types.StatusOpen {
		t.Fatalf("locked plan mutated: %+v", got)
	}
}

func TestTimelineFailureDoesNotFailTransition(t *testing.T) {
	row := draftPlan(types.StatusOpen)
	planRepo := newFakePlanRepo(row)
	tlRepo := &fakeTimelineRepo{fail: true}
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), tlRepo)

	view, err := svc.Transition(ctxForRole(types.RolePIC), row.ID, TransitionInput{
		Target:       types.StatusOnProgress,
		ProgressNote: "first concrete progress note",
	})
	if err != nil {
		t.Fatalf("Transition() error = %v, audit failure must not fail the write", err)
	}
	if view.Plan.Status != types.StatusOnProgress {
		t.Fatalf("status = %q, want on_progress", view.Plan.Status)
	}
}

func TestTerminalRequiresEvidence(t *testing.T) {
	row := draftPlan(types.StatusOnProgress)
	planRepo := newFakePlanRepo(row)
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.Transition(ctxForRole(types.RoleLeader), row.ID, TransitionInput{Target: types.StatusAchieved})
	var v *plan.ValidationError
	if !asErr(err, &v) || v.Field != "evidence" {
		t.Fatalf("error = %v, want evidence validation error", err)
	}
}

func TestSubmitAndRecall(t *testing.T) {
	row := draftPlan(types.StatusOnProgress)
	planRepo := newFakePlanRepo(row)
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})
	ctx := ctxForRole(types.RolePIC)

	view, err := svc.Submit(ctx, row.ID)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if view.Plan.SubmissionStatus != types.SubmissionSubmitted {
		t.Fatalf("submission = %q, want submitted", view.Plan.SubmissionStatus)
	}
	if view.DisplayStatus != "waiting_approval" {
		t.Fatalf("display status = %q, want waiting_approval", view.DisplayStatus)
	}

	if _, err := svc.Submit(ctx, row.ID); !plan.IsConflict(err) {
		t.Fatalf("second submit error = %v, want conflict", err)
	}

	view, err = svc.Recall(ctx, row.ID)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if view.Plan.SubmissionStatus != types.SubmissionDraft {
		t.Fatalf("submission = %q, want draft after recall", view.Plan.SubmissionStatus)
	}
}

func TestRecallRefusedOnceGraded(t *testing.T) {
	row := draftPlan(types.StatusAchieved)
	row.SubmissionStatus = types.SubmissionSubmitted
	score := 90
	row.QualityScore = &score
	planRepo := newFakePlanRepo(row)
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	if _, err := svc.Recall(ctxForRole(types.RolePIC), row.ID); !plan.IsConflict(err) {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestListScopesDepartment(t *testing.T) {
	mine := draftPlan(types.StatusOpen)
	other := draftPlan(types.StatusOpen)
	planRepo := newFakePlanRepo(mine, other)
	svc := newPlanService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	ctx := requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID:       uuid.New(),
		DepartmentID: mine.DepartmentID,
		Role:         types.RoleLeader,
		Capabilities: plan.CapabilitiesForRole(types.RoleLeader),
	})
	views, err := svc.List(ctx, repos.PlanFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 1 || views[0].Plan.ID != mine.ID {
		t.Fatalf("leader sees %d plans, want only their department's", len(views))
	}

	adminViews, err := svc.List(ctxForRole(types.RoleAdmin), repos.PlanFilter{})
	if err != nil {
		t.Fatalf("List() admin error = %v", err)
	}
	if len(adminViews) != 2 {
		t.Fatalf("admin sees %d plans, want 2", len(adminViews))
	}
}

func TestCreateRequiresPlanner(t *testing.T) {
	svc := newPlanService(newFakePlanRepo(), newFakeAttachmentRepo(), &fakeTimelineRepo{})
	now := time.Now()
	in := CreatePlanInput{Name: "New market entry", Category: "Medium", Month: int(now.Month()), Year: now.Year()}

	if _, err := svc.Create(ctxForRole(types.RolePIC), in); err == nil {
		t.Fatal("pic created a plan, want permission error")
	}
	row, err := svc.Create(ctxForRole(types.RoleLeader), in)
	if err != nil {
		t.Fatalf("leader create error = %v", err)
	}
	if row.Status != types.StatusOpen || row.SubmissionStatus != types.SubmissionDraft {
		t.Fatalf("new plan state = %s/%s, want open/draft", row.Status, row.SubmissionStatus)
	}
}
