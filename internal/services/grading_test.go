package services

import (
	"context"
	"testing"
	"time"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

func newGradingService(planRepo *fakePlanRepo, attRepo *fakeAttachmentRepo, tlRepo *fakeTimelineRepo) GradingService {
	return NewGradingService(nil, planRepo, attRepo, tlRepo, testSettings(), testLogger())
}

func submittedPlan() *types.ActionPlan {
	row := draftPlan(types.StatusOnProgress)
	row.SubmissionStatus = types.SubmissionSubmitted
	return row
}

// submittedFixture is the common grading setup: a submitted plan with one
// stored evidence attachment.
func submittedFixture() (*types.ActionPlan, *fakePlanRepo, *fakeAttachmentRepo) {
	row := submittedPlan()
	planRepo := newFakePlanRepo(row)
	attRepo := newFakeAttachmentRepo()
	attachEvidence(attRepo, row.ID)
	return row, planRepo, attRepo
}

func TestGradeRecalledSubmission(t *testing.T) {
	// The owner pulled the submission back while the grader's screen still
	// showed it as submitted.
	row := draftPlan(types.StatusOnProgress)
	planRepo := newFakePlanRepo(row)
	svc := newGradingService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.Grade(ctxForRole(types.RoleGrader), row.ID, GradeInput{Score: 90})
	var recalled *plan.RecalledError
	if !asErr(err, &recalled) {
		t.Fatalf("error = %v, want RecalledError", err)
	}
	got, _ := planRepo.GetByID(context.Background(), nil, row.ID)
	if got.QualityScore != nil {
		t.Fatal("recalled plan still got a score")
	}
}

func TestGradeRefusedWithoutEvidence(t *testing.T) {
	// A submission that somehow carries no evidence cannot be pushed into a
	// terminal status by a grade.
	row := submittedPlan()
	planRepo := newFakePlanRepo(row)
	svc := newGradingService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.Grade(ctxForRole(types.RoleGrader), row.ID, GradeInput{Score: 95})
	var ve *plan.ValidationError
	if !asErr(err, &ve) || ve.Field != "evidence" {
		t.Fatalf("error = %v, want evidence ValidationError", err)
	}
	got, _ := planRepo.GetByID(context.Background(), nil, row.ID)
	if got.Status != types.StatusOnProgress || got.QualityScore != nil {
		t.Fatalf("zero-evidence grade mutated the row: %+v", got)
	}
}

func TestConfirmVerdictRefusedWithoutEvidence(t *testing.T) {
	row := submittedPlan()
	planRepo := newFakePlanRepo(row)
	svc := newGradingService(planRepo, newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.ConfirmVerdict(ctxForRole(types.RoleGrader), row.ID, VerdictRequest{
		Verdict:     "mark_failed",
		Score:       60,
		GapCategory: "Resource",
		GapAnalysis: "team was pulled onto the audit for the whole month",
	})
	var ve *plan.ValidationError
	if !asErr(err, &ve) || ve.Field != "evidence" {
		t.Fatalf("error = %v, want evidence ValidationError", err)
	}
	got, _ := planRepo.GetByID(context.Background(), nil, row.ID)
	if got.Status != types.StatusOnProgress {
		t.Fatalf("zero-evidence verdict mutated the row: %+v", got)
	}
}

func TestGradePassingCommits(t *testing.T) {
	row, planRepo, attRepo := submittedFixture() // High bucket, threshold 80
	tlRepo := &fakeTimelineRepo{}
	svc := newGradingService(planRepo, attRepo, tlRepo)

	result, err := svc.Grade(ctxForRole(types.RoleGrader), row.ID, GradeInput{Score: 85, Feedback: "solid evidence"})
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if result.Pending {
		t.Fatal("passing grade reported as pending")
	}
	if result.Plan.Status != types.StatusAchieved || result.Plan.QualityScore == nil || *result.Plan.QualityScore != 85 {
		t.Fatalf("committed plan = %+v, want achieved with score 85", result.Plan)
	}
}

func TestGradeFailingIsPendingUntilVerdict(t *testing.T) {
	row, planRepo, attRepo := submittedFixture()
	svc := newGradingService(planRepo, attRepo, &fakeTimelineRepo{})

	result, err := svc.Grade(ctxForRole(types.RoleGrader), row.ID, GradeInput{Score: 60})
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if !result.Pending {
		t.Fatal("failing strict grade was not reported pending")
	}
	got, _ := planRepo.GetByID(context.Background(), nil, row.ID)
	if got.QualityScore != nil || got.Status != types.StatusOnProgress {
		t.Fatalf("pending grade mutated the row: %+v", got)
	}
}

func TestRegradeCarriesOverwriteMarker(t *testing.T) {
	row := submittedPlan()
	prev := 82
	row.Status = types.StatusAchieved
	row.QualityScore = &prev
	planRepo := newFakePlanRepo(row)
	attRepo := newFakeAttachmentRepo()
	attachEvidence(attRepo, row.ID)
	tlRepo := &fakeTimelineRepo{}
	svc := newGradingService(planRepo, attRepo, tlRepo)

	result, err := svc.Grade(ctxForRole(types.RoleGrader), row.ID, GradeInput{Score: 95})
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if !result.Outcome.Overwrite {
		t.Fatal("regrade not flagged as overwrite")
	}
	entries, _ := tlRepo.GetByPlanID(context.Background(), nil, row.ID)
	if len(entries) != 1 || entries[0].Marker != types.MarkerRegrade {
		t.Fatalf("timeline = %+v, want one regrade-marked entry", entries)
	}
}

func TestConfirmVerdictRevision(t *testing.T) {
	row, planRepo, attRepo := submittedFixture()
	svc := newGradingService(planRepo, attRepo, &fakeTimelineRepo{})

	updated, err := svc.ConfirmVerdict(ctxForRole(types.RoleGrader), row.ID, VerdictRequest{
		Verdict:      "revision",
		Score:        60,
		Feedback:     "evidence does not support the reported figures",
		RevisionDays: 7,
	})
	if err != nil {
		t.Fatalf("ConfirmVerdict() error = %v", err)
	}
	if updated.QualityScore != nil {
		t.Fatal("revision left a score on the plan")
	}
	if updated.SubmissionStatus != types.SubmissionDraft {
		t.Fatalf("submission = %q, want draft after revision", updated.SubmissionStatus)
	}
	if updated.TemporaryUnlockExpiry == nil || !updated.TemporaryUnlockExpiry.After(time.Now()) {
		t.Fatalf("grace window not set: %v", updated.TemporaryUnlockExpiry)
	}
}

func TestConfirmVerdictForceCarryOver(t *testing.T) {
	row, planRepo, attRepo := submittedFixture()
	svc := newGradingService(planRepo, attRepo, &fakeTimelineRepo{})

	updated, err := svc.ConfirmVerdict(ctxForRole(types.RoleGrader), row.ID, VerdictRequest{
		Verdict:     "force_carry_over",
		Score:       60,
		Feedback:    "target missed two months running",
		GapCategory: "Planning",
		GapAnalysis: "timeline was unrealistic for the vendor lead times involved",
	})
	if err != nil {
		t.Fatalf("ConfirmVerdict() error = %v", err)
	}
	if updated.Status != types.StatusNotAchieved {
		t.Fatalf("status = %q, want not_achieved", updated.Status)
	}

	successors, _ := planRepo.List(context.Background(), nil, listByCarriedFrom(row.ID))
	if len(successors) != 1 {
		t.Fatalf("successors = %d, want 1", len(successors))
	}
	succ := successors[0]
	if succ.MaxPossibleScore == nil || *succ.MaxPossibleScore != 90 {
		t.Fatalf("successor cap = %v, want 90 (100 - penalty 10)", succ.MaxPossibleScore)
	}
	wantMonth, wantYear := row.Month+1, row.Year
	if wantMonth > 12 {
		wantMonth, wantYear = 1, wantYear+1
	}
	if succ.Month != wantMonth || succ.Year != wantYear {
		t.Fatalf("successor period = %d/%d, want %d/%d", succ.Month, succ.Year, wantMonth, wantYear)
	}
	if succ.QualityScore != nil || succ.Status != types.StatusOpen {
		t.Fatalf("successor inherited state: %+v", succ)
	}
}

func TestConfirmVerdictMarkFailed(t *testing.T) {
	row, planRepo, attRepo := submittedFixture()
	svc := newGradingService(planRepo, attRepo, &fakeTimelineRepo{})

	updated, err := svc.ConfirmVerdict(ctxForRole(types.RoleGrader), row.ID, VerdictRequest{
		Verdict:     "mark_failed",
		Score:       60,
		GapCategory: "Resource",
		GapAnalysis: "team was pulled onto the audit for the whole month",
	})
	if err != nil {
		t.Fatalf("ConfirmVerdict() error = %v", err)
	}
	if updated.Status != types.StatusNotAchieved || updated.QualityScore == nil || *updated.QualityScore != 60 {
		t.Fatalf("plan = %+v, want not_achieved with score 60", updated)
	}
	successors, _ := planRepo.List(context.Background(), nil, listByCarriedFrom(row.ID))
	if len(successors) != 0 {
		t.Fatal("mark_failed spawned a successor")
	}
}

func TestConfirmVerdictAfterPassingScoreConflicts(t *testing.T) {
	row, planRepo, attRepo := submittedFixture()
	svc := newGradingService(planRepo, attRepo, &fakeTimelineRepo{})

	_, err := svc.ConfirmVerdict(ctxForRole(types.RoleGrader), row.ID, VerdictRequest{
		Verdict: "mark_failed",
		Score:   95,
	})
	if !plan.IsConflict(err) {
		t.Fatalf("error = %v, want conflict for a score that now passes", err)
	}
}

func TestGradeRequiresGraderCapability(t *testing.T) {
	row := submittedPlan()
	svc := newGradingService(newFakePlanRepo(row), newFakeAttachmentRepo(), &fakeTimelineRepo{})

	_, err := svc.Grade(ctxForRole(types.RolePIC), row.ID, GradeInput{Score: 80})
	var perm *plan.PermissionError
	if !asErr(err, &perm) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
}
