// Package statemachine is the transition orchestrator. Every status-change
// request flows through here: the lock verdict gates it, the escalation and
// resolution engines validate target-specific payloads, and the result is a
// change set plus timeline entries for the service layer to commit. All
// validation completes before anything is written; an uncovered transition
// pair degrades to an execution-fields-only update.
package statemachine

import (
	"fmt"
	"strings"

	"github.com/kertaswork/plantrack-backend/internal/domain/escalation"
	"github.com/kertaswork/plantrack-backend/internal/domain/grading"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/resolution"
)

// Config bundles the policy slices the delegated engines need.
type Config struct {
	Escalation escalation.Config
	Resolution resolution.Policy
}

// Input is one transition request.
type Input struct {
	Target plan.Status

	ProgressNote   string
	ResolutionNote string

	// Blocker payload, consumed when Target is Blocked.
	Blocker escalation.RaiseInput

	// FollowUp payload, consumed when Target is NotAchieved.
	FollowUp resolution.Input

	// Execution-only fields, always writable subject to the lock.
	Remark *string
}

// TimelineEntry is a pending append to the plan's timeline.
type TimelineEntry struct {
	Kind    string
	Message string
	Marker  string
}

// Changes is the validated mutation set. Zero-value fields that are
// pointers stay untouched on commit.
type Changes struct {
	Status plan.Status
	Detail plan.Detail

	ResolutionType    *plan.ResolutionType
	SetResolutionType bool
	IsDropPending     bool

	NeedsExecReview    bool
	SetNeedsExecReview bool

	Remark *string

	// ExecutionOnly marks an uncovered pair: no status change committed.
	ExecutionOnly bool

	Timeline []TimelineEntry
}

// Transition validates a status-change request against the current
// snapshot. lockState is the already-computed lock verdict for this caller;
// a bypassed lock is the caller's responsibility to record.
func Transition(s plan.Snapshot, in Input, lockState plan.LockState, caps plan.Capabilities, cfg Config) (Changes, error) {
	if caps.ReadOnly {
		return Changes{}, &plan.PermissionError{Capability: "update", Reason: "read-only callers cannot modify plans"}
	}
	if lockState.Locked && !lockState.Bypassed {
		return Changes{}, &plan.PermissionError{Capability: "override_lock", Reason: "plan is locked"}
	}
	if !in.Target.Valid() {
		return Changes{}, plan.NewValidationError("target_status", fmt.Sprintf("unknown status %q", in.Target))
	}

	if !covered(s.Status, in.Target) {
		// Execution-only update: evidence and remark keep flowing while
		// the lifecycle stays put.
		return Changes{
			Status:        s.Status,
			Detail:        s.Detail,
			Remark:        in.Remark,
			ExecutionOnly: true,
		}, nil
	}

	if !caps.CanUpdateStatus {
		return Changes{}, &plan.PermissionError{Capability: "update_status"}
	}

	switch in.Target {
	case plan.StatusOnProgress:
		return toOnProgress(s, in)
	case plan.StatusBlocked:
		return toBlocked(s, in, cfg)
	case plan.StatusAchieved:
		return toAchieved(s, in)
	case plan.StatusNotAchieved:
		return toNotAchieved(s, in, cfg)
	default:
		return Changes{}, plan.NewValidationError("target_status", fmt.Sprintf("no transition into %q", in.Target))
	}
}

// covered reports whether (from, to) is an explicit lifecycle transition.
func covered(from, to plan.Status) bool {
	switch to {
	case plan.StatusOnProgress:
		return from == plan.StatusOpen || from == plan.StatusBlocked
	case plan.StatusBlocked:
		// Re-raising from Blocked updates the escalation in place.
		return from == plan.StatusOnProgress || from == plan.StatusBlocked
	case plan.StatusAchieved, plan.StatusNotAchieved:
		return !from.Terminal()
	default:
		return false
	}
}

func toOnProgress(s plan.Snapshot, in Input) (Changes, error) {
	ch := Changes{Status: plan.StatusOnProgress, Detail: plan.NoDetail{}, Remark: in.Remark}

	if s.Status == plan.StatusBlocked {
		res, err := escalation.ValidateResolve(in.ResolutionNote, in.ProgressNote)
		if err != nil {
			return Changes{}, err
		}
		ch.Timeline = append(ch.Timeline,
			TimelineEntry{Kind: "blocker_resolved", Message: res.Message, Marker: res.Marker},
		)
		return ch, nil
	}

	note := strings.TrimSpace(in.ProgressNote)
	if len(note) < plan.MinNoteLen {
		return Changes{}, plan.NewLengthError("progress_note", plan.MinNoteLen, len(note))
	}
	ch.Timeline = append(ch.Timeline, TimelineEntry{Kind: "progress_update", Message: note})
	return ch, nil
}

func toBlocked(s plan.Snapshot, in Input, cfg Config) (Changes, error) {
	blocked, err := escalation.ValidateRaise(in.Blocker, cfg.Escalation)
	if err != nil {
		return Changes{}, err
	}
	needsReview := escalation.NeedsExecReview(blocked.Tier)
	return Changes{
		Status:             plan.StatusBlocked,
		Detail:             blocked,
		NeedsExecReview:    needsReview,
		SetNeedsExecReview: true,
		Remark:             in.Remark,
		Timeline: []TimelineEntry{
			{Kind: "blocker_report", Message: blocked.Reason},
		},
	}, nil
}

func toAchieved(s plan.Snapshot, in Input) (Changes, error) {
	if s.EvidenceCount < 1 {
		return Changes{}, plan.NewValidationError("evidence", "at least one evidence attachment is required")
	}
	ch := Changes{Status: plan.StatusAchieved, Detail: plan.NoDetail{}, Remark: in.Remark}
	if s.Status == plan.StatusBlocked {
		ch.Timeline = append(ch.Timeline, resolveBlockedEntry(in, plan.StatusAchieved))
	}
	return ch, nil
}

func toNotAchieved(s plan.Snapshot, in Input, cfg Config) (Changes, error) {
	if s.EvidenceCount < 1 {
		return Changes{}, plan.NewValidationError("evidence", "at least one evidence attachment is required")
	}
	bucket := grading.Classify(s.Category)
	decision, err := resolution.Decide(in.FollowUp, bucket, cfg.Resolution)
	if err != nil {
		return Changes{}, err
	}
	rt := decision.ResolutionType
	ch := Changes{
		Status:            plan.StatusNotAchieved,
		Detail:            decision.Detail,
		ResolutionType:    &rt,
		SetResolutionType: true,
		IsDropPending:     decision.IsDropPending,
		Remark:            in.Remark,
	}
	if s.Status == plan.StatusBlocked {
		ch.Timeline = append(ch.Timeline, resolveBlockedEntry(in, plan.StatusNotAchieved))
	}
	return ch, nil
}

// resolveBlockedEntry labels an exit from Blocked: manual when a resolution
// note was supplied, auto-resolved when the transition jumped straight to a
// terminal status.
func resolveBlockedEntry(in Input, target plan.Status) TimelineEntry {
	note := strings.TrimSpace(in.ResolutionNote)
	if len(note) >= plan.MinNoteLen {
		res, err := escalation.ValidateResolve(note, in.ProgressNote)
		if err == nil {
			return TimelineEntry{Kind: "blocker_resolved", Message: res.Message, Marker: res.Marker}
		}
	}
	auto := escalation.AutoResolution(target)
	return TimelineEntry{Kind: "blocker_resolved", Message: auto.Message, Marker: auto.Marker}
}
