package services

import (
	"context"
	"testing"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

func TestRegisterAttachments(t *testing.T) {
	row := draftPlan(types.StatusOnProgress)
	planRepo := newFakePlanRepo(row)
	attRepo := newFakeAttachmentRepo()
	planSvc := newPlanService(planRepo, attRepo, &fakeTimelineRepo{})
	svc := NewAttachmentService(attRepo, planSvc, testLogger())

	rows, err := svc.Register(ctxForRole(types.RolePIC), row.ID, []AttachmentInput{
		{Kind: types.AttachmentFile, URL: "s3://evidence/report.pdf", Name: "report.pdf"},
		{Kind: types.AttachmentLink, URL: "https://dash.example.com/kpi", Title: "KPI dashboard"},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("registered %d, want 2", len(rows))
	}
	count, _ := attRepo.CountByPlanID(context.Background(), nil, row.ID)
	if count != 2 {
		t.Fatalf("stored %d, want 2", count)
	}
}

func TestRegisterValidatesBeforeStoring(t *testing.T) {
	row := draftPlan(types.StatusOnProgress)
	attRepo := newFakeAttachmentRepo()
	planSvc := newPlanService(newFakePlanRepo(row), attRepo, &fakeTimelineRepo{})
	svc := NewAttachmentService(attRepo, planSvc, testLogger())

	_, err := svc.Register(ctxForRole(types.RolePIC), row.ID, []AttachmentInput{
		{Kind: types.AttachmentFile, URL: "s3://evidence/ok.pdf"},
		{Kind: "carrier-pigeon", URL: "s3://evidence/bad"},
	})
	var v *plan.ValidationError
	if !asErr(err, &v) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	count, _ := attRepo.CountByPlanID(context.Background(), nil, row.ID)
	if count != 0 {
		t.Fatalf("invalid batch stored %d rows, want 0", count)
	}
}

func TestRegisterRefusedWhenLocked(t *testing.T) {
	row := draftPlan(types.StatusOnProgress)
	row.Month, row.Year = 1, 2020
	attRepo := newFakeAttachmentRepo()
	planSvc := newPlanService(newFakePlanRepo(row), attRepo, &fakeTimelineRepo{})
	svc := NewAttachmentService(attRepo, planSvc, testLogger())

	_, err := svc.Register(ctxForRole(types.RolePIC), row.ID, []AttachmentInput{
		{Kind: types.AttachmentFile, URL: "s3://evidence/late.pdf"},
	})
	var perm *plan.PermissionError
	if !asErr(err, &perm) {
		t.Fatalf("error = %v, want PermissionError", err)
	}
}
