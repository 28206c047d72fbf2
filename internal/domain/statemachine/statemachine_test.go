package statemachine

import (
	"errors"
	"strings"
	"testing"

	"github.com/kertaswork/plantrack-backend/internal/domain/escalation"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/resolution"
)

func testConfig() Config {
	return Config{
		Escalation: escalation.Config{
			Categories: []string{"Resource", "Dependency"},
			MinReasonLen: map[string]int{
				escalation.TierLeader:    10,
				escalation.TierManager:   20,
				escalation.TierDirector:  40,
				escalation.TierExecutive: 80,
			},
		},
		Resolution: resolution.Policy{
			GapAnalysisMin:       10,
			DropJustificationMin: 30,
			ApprovalMinBucket:    "high",
			GapCategories:        []string{"Planning", "Execution"},
		},
	}
}

func unlocked() plan.LockState { return plan.LockState{} }

func leaderCaps() plan.Capabilities { return plan.CapabilitiesForRole("leader") }

func baseSnap(status plan.Status) plan.Snapshot {
	s := plan.Snapshot{
		Name:       "Cut ticket backlog",
		Category:   "Medium",
		Month:      3,
		Year:       2026,
		Status:     status,
		Submission: plan.SubmissionDraft,
		Detail:     plan.NoDetail{},
	}
	if status == plan.StatusBlocked {
		s.Detail = plan.Blocked{
			Category: "Dependency",
			Reason:   "waiting on infra team capacity this month",
			Tier:     escalation.TierManager,
		}
	}
	return s
}

// applyChanges projects a change set back onto a snapshot the way the plan
// service does, so invariants can be checked after each table case.
func applyChanges(s plan.Snapshot, ch Changes) plan.Snapshot {
	s.Status = ch.Status
	s.Detail = ch.Detail
	if ch.SetResolutionType {
		s.ResolutionType = ch.ResolutionType
	}
	s.IsDropPending = ch.IsDropPending
	return s
}

func invariantMins() plan.InvariantMins {
	return plan.InvariantMins{
		AttentionMinLengths: testConfig().Escalation.MinReasonLen,
		GapAnalysisMin:      testConfig().Resolution.GapAnalysisMin,
	}
}

func TestTransition_OpenToOnProgress(t *testing.T) {
	s := baseSnap(plan.StatusOpen)

	_, err := Transition(s, Input{Target: plan.StatusOnProgress, ProgressNote: "hey"}, unlocked(), leaderCaps(), testConfig())
	var vErr *plan.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "progress_note" {
		t.Fatalf("short note must fail on progress_note, got %v", err)
	}

	ch, err := Transition(s, Input{Target: plan.StatusOnProgress, ProgressNote: "kicked off with the team"}, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Status != plan.StatusOnProgress {
		t.Fatalf("status=%s", ch.Status)
	}
	if len(ch.Timeline) != 1 || ch.Timeline[0].Kind != "progress_update" {
		t.Fatalf("expected a progress_update entry: %+v", ch.Timeline)
	}
	if err := plan.CheckInvariants(applyChanges(s, ch), invariantMins()); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestTransition_IntoBlocked(t *testing.T) {
	s := baseSnap(plan.StatusOnProgress)
	in := Input{
		Target: plan.StatusBlocked,
		Blocker: escalation.RaiseInput{
			Role:     "leader",
			Category: "Dependency",
			Tier:     escalation.TierManager,
			Reason:   "waiting on infra team capacity this month",
		},
	}
	ch, err := Transition(s, in, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocked, ok := ch.Detail.(plan.Blocked)
	if !ok {
		t.Fatalf("detail must be Blocked, got %T", ch.Detail)
	}
	if blocked.Tier != escalation.TierManager {
		t.Fatalf("tier=%s", blocked.Tier)
	}
	if ch.NeedsExecReview || !ch.SetNeedsExecReview {
		t.Fatalf("manager tier must clear the review flag: %+v", ch)
	}
	if err := plan.CheckInvariants(applyChanges(s, ch), invariantMins()); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestTransition_ExecutiveTierFlagsReviewQueue(t *testing.T) {
	s := baseSnap(plan.StatusOnProgress)
	in := Input{
		Target: plan.StatusBlocked,
		Blocker: escalation.RaiseInput{
			Role:     "leader",
			Category: "Dependency",
			Tier:     escalation.TierExecutive,
			Reason:   strings.Repeat("the regulator has frozen the rollout ", 3),
		},
	}
	ch, err := Transition(s, in, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ch.NeedsExecReview {
		t.Fatalf("executive tier must flag the review queue")
	}
}

func TestTransition_BlockedRoundTrip(t *testing.T) {
	// Enter Blocked, then resolve to OnProgress: blocker fields must be
	// gone and the resolution note promoted with its marker.
	s := baseSnap(plan.StatusBlocked)
	ch, err := Transition(s, Input{Target: plan.StatusOnProgress, ResolutionNote: "infra freed up capacity"}, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ch.Detail.(plan.NoDetail); !ok {
		t.Fatalf("blocker detail must be cleared, got %T", ch.Detail)
	}
	if len(ch.Timeline) != 1 || ch.Timeline[0].Kind != "blocker_resolved" || ch.Timeline[0].Marker != "resolution_note" {
		t.Fatalf("expected a marked blocker_resolved entry: %+v", ch.Timeline)
	}
	if err := plan.CheckInvariants(applyChanges(s, ch), invariantMins()); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestTransition_BlockedNeedsResolutionNote(t *testing.T) {
	s := baseSnap(plan.StatusBlocked)
	_, err := Transition(s, Input{Target: plan.StatusOnProgress}, unlocked(), leaderCaps(), testConfig())
	var vErr *plan.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "resolution_note" {
		t.Fatalf("want ValidationError on resolution_note, got %v", err)
	}
}

func TestTransition_BlockedToTerminalAutoResolves(t *testing.T) {
	s := baseSnap(plan.StatusBlocked)
	s.EvidenceCount = 2
	ch, err := Transition(s, Input{Target: plan.StatusAchieved}, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.Timeline) != 1 || ch.Timeline[0].Marker != "auto_resolved" {
		t.Fatalf("terminal jump without a resolve step must be labeled auto_resolved: %+v", ch.Timeline)
	}
	if _, ok := ch.Detail.(plan.NoDetail); !ok {
		t.Fatalf("blocker detail must be cleared")
	}
}

func TestTransition_AchievedRequiresEvidence(t *testing.T) {
	s := baseSnap(plan.StatusOnProgress)
	_, err := Transition(s, Input{Target: plan.StatusAchieved}, unlocked(), leaderCaps(), testConfig())
	var vErr *plan.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "evidence" {
		t.Fatalf("want ValidationError on evidence, got %v", err)
	}
}

func TestTransition_NotAchievedDelegatesFollowUp(t *testing.T) {
	s := baseSnap(plan.StatusOnProgress)
	s.EvidenceCount = 1
	in := Input{
		Target: plan.StatusNotAchieved,
		FollowUp: resolution.Input{
			FollowUp:    plan.FollowUpCarryOver,
			GapCategory: "Execution",
			GapAnalysis: "vendor slipped two weeks and the buffer was gone",
		},
	}
	ch, err := Transition(s, in, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ch.Status != plan.StatusNotAchieved || !ch.SetResolutionType {
		t.Fatalf("unexpected changes: %+v", ch)
	}
	if ch.ResolutionType == nil || *ch.ResolutionType != plan.ResolutionCarriedOver {
		t.Fatalf("resolution type must be carried_over")
	}
	if err := plan.CheckInvariants(applyChanges(s, ch), invariantMins()); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestTransition_UncoveredPairIsExecutionOnly(t *testing.T) {
	s := baseSnap(plan.StatusOpen)
	remark := "updated the evidence links"
	ch, err := Transition(s, Input{Target: plan.StatusBlocked, Remark: &remark}, unlocked(), leaderCaps(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ch.ExecutionOnly || ch.Status != plan.StatusOpen {
		t.Fatalf("open->blocked is uncovered and must degrade to execution-only: %+v", ch)
	}
	if ch.Remark == nil || *ch.Remark != remark {
		t.Fatalf("execution fields must still flow")
	}
}

func TestTransition_LockGate(t *testing.T) {
	s := baseSnap(plan.StatusOpen)
	in := Input{Target: plan.StatusOnProgress, ProgressNote: "kicked off with the team"}

	_, err := Transition(s, in, plan.LockState{Locked: true}, leaderCaps(), testConfig())
	var pErr *plan.PermissionError
	if !errors.As(err, &pErr) {
		t.Fatalf("locked plan must refuse transitions, got %v", err)
	}

	// Even execution-only updates are gated.
	_, err = Transition(s, Input{Target: plan.StatusBlocked}, plan.LockState{Locked: true}, leaderCaps(), testConfig())
	if !errors.As(err, &pErr) {
		t.Fatalf("locked plan must refuse execution updates, got %v", err)
	}

	// A recorded bypass lets the transition through.
	if _, err := Transition(s, in, plan.LockState{Locked: true, Bypassed: true}, leaderCaps(), testConfig()); err != nil {
		t.Fatalf("bypassed lock must allow the transition: %v", err)
	}
}

func TestTransition_ReadOnlyCallerRefused(t *testing.T) {
	s := baseSnap(plan.StatusOpen)
	caps := plan.CapabilitiesForRole("executive")
	_, err := Transition(s, Input{Target: plan.StatusOnProgress, ProgressNote: "kicked off with the team"}, unlocked(), caps, testConfig())
	var pErr *plan.PermissionError
	if !errors.As(err, &pErr) {
		t.Fatalf("read-only caller must be refused, got %v", err)
	}
}

func TestTransition_ValidationBeforeAnyCommit(t *testing.T) {
	// A transition with multiple problems must fail on field shape and
	// produce no change set at all.
	s := baseSnap(plan.StatusOnProgress)
	ch, err := Transition(s, Input{Target: plan.StatusNotAchieved}, unlocked(), leaderCaps(), testConfig())
	if err == nil {
		t.Fatalf("expected a validation error")
	}
	if ch.Status != "" || ch.Detail != nil {
		t.Fatalf("failed validation must return a zero change set: %+v", ch)
	}
}
