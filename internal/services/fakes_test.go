package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/domain/escalation"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/requestdata"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

func asErr[T error](err error, target *T) bool {
	return errors.As(err, target)
}

func listByCarriedFrom(id uuid.UUID) repos.PlanFilter {
	return repos.PlanFilter{CarriedFromID: &id}
}

func testLogger() *logger.Logger {
	log, err := logger.New("development")
	if err != nil {
		panic(err)
	}
	return log
}

func ctxForRole(role string) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID:       uuid.New(),
		DepartmentID: uuid.New(),
		Role:         role,
		Capabilities: plan.CapabilitiesForRole(role),
	})
}

// fakePlanRepo is an in-memory ActionPlanRepo with the same optimistic
// guard semantics as the real one.
type fakePlanRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*types.ActionPlan
	stale bool
}

func newFakePlanRepo(rows ...*types.ActionPlan) *fakePlanRepo {
	m := map[uuid.UUID]*types.ActionPlan{}
	for _, r := range rows {
		m[r.ID] = r
	}
	return &fakePlanRepo{rows: m}
}

func (f *fakePlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.ActionPlan) ([]*types.ActionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range plans {
		p.CreatedAt = time.Now()
		p.UpdatedAt = time.Now()
		f.rows[p.ID] = p
	}
	return plans, nil
}

func (f *fakePlanRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ActionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakePlanRepo) List(ctx context.Context, tx *gorm.DB, filter repos.PlanFilter) ([]*types.ActionPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ActionPlan
	for _, row := range f.rows {
		if filter.DepartmentID != nil && row.DepartmentID != *filter.DepartmentID {
			continue
		}
		if filter.Status != nil && row.Status != *filter.Status {
			continue
		}
		if filter.SubmissionStatus != nil && row.SubmissionStatus != *filter.SubmissionStatus {
			continue
		}
		if filter.DropPending != nil && row.IsDropPending != *filter.DropPending {
			continue
		}
		if filter.ExecReview != nil && row.NeedsExecReview != *filter.ExecReview {
			continue
		}
		if filter.CarriedFromID != nil && (row.CarriedFromID == nil || *row.CarriedFromID != *filter.CarriedFromID) {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakePlanRepo) UpdateGuarded(ctx context.Context, tx *gorm.DB, id uuid.UUID, seenUpdatedAt time.Time, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || f.stale || !row.UpdatedAt.Equal(seenUpdatedAt) {
		return repos.ErrStaleUpdate
	}
	applyUpdates(row, updates)
	row.UpdatedAt = time.Now()
	return nil
}

func applyUpdates(row *types.ActionPlan, updates map[string]interface{}) {
	setStr := func(dst **string, v interface{}) {
		if v == nil {
			*dst = nil
			return
		}
		s := v.(string)
		*dst = &s
	}
	for col, v := range updates {
		switch col {
		case "status":
			row.Status = v.(string)
		case "submission_status":
			row.SubmissionStatus = v.(string)
		case "remark":
			row.Remark = v.(string)
		case "quality_score":
			if v == nil {
				row.QualityScore = nil
			} else {
				n := v.(int)
				row.QualityScore = &n
			}
		case "blocker_category":
			setStr(&row.BlockerCategory, v)
		case "blocker_reason":
			setStr(&row.BlockerReason, v)
		case "attention_level":
			setStr(&row.AttentionLevel, v)
		case "gap_category":
			setStr(&row.GapCategory, v)
		case "gap_analysis":
			setStr(&row.GapAnalysis, v)
		case "specify_reason":
			setStr(&row.SpecifyReason, v)
		case "resolution_type":
			setStr(&row.ResolutionType, v)
		case "is_drop_pending":
			row.IsDropPending = v.(bool)
		case "needs_exec_review":
			row.NeedsExecReview = v.(bool)
		case "admin_feedback":
			row.AdminFeedback = v.(string)
		case "temporary_unlock_expiry":
			if v == nil {
				row.TemporaryUnlockExpiry = nil
			} else {
				t := v.(*time.Time)
				row.TemporaryUnlockExpiry = t
			}
		}
	}
}

type fakeAttachmentRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID][]*types.PlanAttachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{rows: map[uuid.UUID][]*types.PlanAttachment{}}
}

// attachEvidence seeds one stored evidence link for the plan.
func attachEvidence(f *fakeAttachmentRepo, planID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[planID] = append(f.rows[planID], &types.PlanAttachment{
		ID:     uuid.New(),
		PlanID: planID,
		Kind:   types.AttachmentLink,
		URL:    "https://files.example/monthly-report.pdf",
	})
}

func (f *fakeAttachmentRepo) Create(ctx context.Context, tx *gorm.DB, attachments []*types.PlanAttachment) ([]*types.PlanAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range attachments {
		f.rows[a.PlanID] = append(f.rows[a.PlanID], a)
	}
	return attachments, nil
}

func (f *fakeAttachmentRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[planID], nil
}

func (f *fakeAttachmentRepo) CountByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows[planID])), nil
}

func (f *fakeAttachmentRepo) DeleteByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, planID)
	return nil
}

type fakeTimelineRepo struct {
	mu      sync.Mutex
	entries []*types.TimelineEntry
	fail    bool
}

func (f *fakeTimelineRepo) Append(ctx context.Context, tx *gorm.DB, entries []*types.TimelineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return gorm.ErrInvalidDB
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeTimelineRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.TimelineEntry
	for _, e := range f.entries {
		if e.PlanID == planID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeOverrideRepo struct {
	byPeriod map[[2]int]*types.LockOverride
}

func (f *fakeOverrideRepo) GetByPeriod(ctx context.Context, tx *gorm.DB, month, year int) (*types.LockOverride, error) {
	if f.byPeriod == nil {
		return nil, nil
	}
	return f.byPeriod[[2]int{month, year}], nil
}

func (f *fakeOverrideRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.LockOverride, error) {
	var out []*types.LockOverride
	for _, o := range f.byPeriod {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOverrideRepo) Upsert(ctx context.Context, tx *gorm.DB, override *types.LockOverride) error {
	if f.byPeriod == nil {
		f.byPeriod = map[[2]int]*types.LockOverride{}
	}
	f.byPeriod[[2]int{override.Month, override.Year}] = override
	return nil
}

func (f *fakeOverrideRepo) DeleteByPeriod(ctx context.Context, tx *gorm.DB, month, year int) error {
	delete(f.byPeriod, [2]int{month, year})
	return nil
}

type fakeSettingsRepo struct {
	row *types.PolicySettings
}

func (f *fakeSettingsRepo) Get(ctx context.Context, tx *gorm.DB) (*types.PolicySettings, error) {
	return f.row, nil
}

func (f *fakeSettingsRepo) Save(ctx context.Context, tx *gorm.DB, settings *types.PolicySettings) error {
	f.row = settings
	return nil
}

// testPolicyRow is the configured rulebook most tests run against.
func testPolicyRow() *types.PolicySettings {
	return &types.PolicySettings{
		ID:            uuid.New(),
		LockEnabled:   true,
		LockCutoffDay: 6,
		StrictGrading: true,
		Thresholds: datatypes.NewJSONType(map[string]int{
			"low": 70, "medium": 75, "high": 80, "ultra_high": 85,
		}),
		AttentionMinLengths: datatypes.NewJSONType(map[string]int{
			escalation.TierLeader:    10,
			escalation.TierManager:   20,
			escalation.TierDirector:  30,
			escalation.TierExecutive: 40,
		}),
		GapAnalysisMinLength:       10,
		DropJustificationMinLength: 30,
		DropApprovalMinBucket:      "high",
		RevisionWindowMaxDays:      14,
		CarryOverPenalty:           10,
		GapCategories:              datatypes.NewJSONType([]string{"Planning", "Resource", "Other"}),
		BlockerCategories:          datatypes.NewJSONType([]string{"Budget", "Vendor", "Other"}),
	}
}

func testSettings() SettingsService {
	return NewSettingsService(&fakeSettingsRepo{row: testPolicyRow()}, nil, testLogger())
}

// draftPlan builds a current-month row so the temporal lock stays open.
func draftPlan(status string) *types.ActionPlan {
	now := time.Now()
	return &types.ActionPlan{
		ID:               uuid.New(),
		DepartmentID:     uuid.New(),
		PicUserID:        uuid.New(),
		Name:             "Reduce unplanned downtime",
		Indicator:        "downtime hours",
		Category:         "High",
		Month:            int(now.Month()),
		Year:             now.Year(),
		Status:           status,
		SubmissionStatus: types.SubmissionDraft,
		UpdatedAt:        now,
		CreatedAt:        now,
	}
}
