// Package plan contains the pure vocabulary of the action-plan lifecycle:
// status enums, the per-status detail union, caller capabilities, and the
// error taxonomy shared by the policy engines. Nothing here touches the
// database or the HTTP layer; services project persisted rows into a
// Snapshot before calling any engine.
package plan

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOpen        Status = "open"
	StatusOnProgress  Status = "on_progress"
	StatusBlocked     Status = "blocked"
	StatusAchieved    Status = "achieved"
	StatusNotAchieved Status = "not_achieved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusOnProgress, StatusBlocked, StatusAchieved, StatusNotAchieved:
		return true
	}
	return false
}

// Terminal reports whether the status closes the plan's execution phase.
func (s Status) Terminal() bool {
	return s == StatusAchieved || s == StatusNotAchieved
}

type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
)

type ResolutionType string

const (
	ResolutionCarriedOver ResolutionType = "carried_over"
	ResolutionDropped     ResolutionType = "dropped"
)

// FollowUp is the mandatory decision accompanying a transition into
// NotAchieved.
type FollowUp string

const (
	FollowUpCarryOver FollowUp = "carry_over"
	FollowUpDrop      FollowUp = "drop"
)

// MinNoteLen is the floor for free-text progress and resolution notes.
const MinNoteLen = 5

// Detail is the tagged union of status-dependent field clusters. Exactly one
// variant is live at a time; illegal combinations (blocker fields on an open
// plan, gap fields on a blocked one) are unrepresentable inside the engines
// and only appear flattened at the persistence boundary.
type Detail interface {
	isDetail()
}

// NoDetail covers Open, OnProgress and Achieved.
type NoDetail struct{}

func (NoDetail) isDetail() {}

// Blocked carries the escalation fields that exist only while the plan is
// stuck.
type Blocked struct {
	Category string
	Reason   string
	Tier     string
}

func (Blocked) isDetail() {}

// NotAchieved carries the failure-analysis fields plus the follow-up branch.
type NotAchieved struct {
	GapCategory   string
	GapAnalysis   string
	SpecifyReason string
	FollowUp      FollowUp
}

func (NotAchieved) isDetail() {}

// Snapshot is the engine-side view of one persisted plan. It is a value:
// engines never mutate it, they return change sets.
type Snapshot struct {
	ID           uuid.UUID
	DepartmentID uuid.UUID
	PicUserID    uuid.UUID

	Name     string
	Category string
	Month    int
	Year     int

	Status     Status
	Submission SubmissionStatus
	Detail     Detail

	QualityScore     *int
	MaxPossibleScore *int

	IsDropPending  bool
	ResolutionType *ResolutionType

	UnlockStatus          string
	ApprovedUntil         *time.Time
	TemporaryUnlockExpiry *time.Time

	NeedsExecReview bool
	EvidenceCount   int

	UpdatedAt time.Time
}

// Graded reports whether a score has been recorded against the plan.
func (s Snapshot) Graded() bool {
	return s.QualityScore != nil
}
