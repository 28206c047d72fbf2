package types

import (
	"time"

	"github.com/google/uuid"
)

// Status values for ActionPlan.Status.
const (
	StatusOpen        = "open"
	StatusOnProgress  = "on_progress"
	StatusBlocked     = "blocked"
	StatusAchieved    = "achieved"
	StatusNotAchieved = "not_achieved"
)

// SubmissionStatus values. Orthogonal to Status: a plan in any lifecycle
// state is either still editable by its department (draft) or handed over
// for grading (submitted).
const (
	SubmissionDraft     = "draft"
	SubmissionSubmitted = "submitted"
)

// ResolutionType values for failed plans.
const (
	ResolutionCarriedOver = "carried_over"
	ResolutionDropped     = "dropped"
)

// UnlockStatus values for temporal-lock override requests.
const (
	UnlockApproved = "approved"
	UnlockRejected = "rejected"
)

type ActionPlan struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DepartmentID uuid.UUID `gorm:"type:uuid;index;not null;column:department_id" json:"department_id"`
	PicUserID    uuid.UUID `gorm:"type:uuid;index;column:pic_user_id" json:"pic_user_id"`

	Name      string `gorm:"not null;column:name" json:"name"`
	Indicator string `gorm:"column:indicator" json:"indicator"`
	// Category is free text entered by departments; the grading engine
	// derives the priority bucket from it by token matching.
	Category string `gorm:"column:category" json:"category"`
	Month    int    `gorm:"not null;index:idx_action_plan_period;column:month" json:"month"`
	Year     int    `gorm:"not null;index:idx_action_plan_period;column:year" json:"year"`

	Status           string `gorm:"not null;default:open;index;column:status" json:"status"`
	SubmissionStatus string `gorm:"not null;default:draft;column:submission_status" json:"submission_status"`
	Remark           string `gorm:"column:remark" json:"remark"`

	QualityScore     *int `gorm:"column:quality_score" json:"quality_score"`
	MaxPossibleScore *int `gorm:"column:max_possible_score" json:"max_possible_score"`

	BlockerCategory *string `gorm:"column:blocker_category" json:"blocker_category"`
	BlockerReason   *string `gorm:"column:blocker_reason" json:"blocker_reason"`
	AttentionLevel  *string `gorm:"column:attention_level" json:"attention_level"`
	// NeedsExecReview marks highest-tier escalations for the separate
	// review queue; cleared independently of the blocker fields.
	NeedsExecReview bool `gorm:"not null;default:false;column:needs_exec_review" json:"needs_exec_review"`

	GapCategory   *string `gorm:"column:gap_category" json:"gap_category"`
	GapAnalysis   *string `gorm:"column:gap_analysis" json:"gap_analysis"`
	SpecifyReason *string `gorm:"column:specify_reason" json:"specify_reason"`

	ResolutionType *string `gorm:"column:resolution_type" json:"resolution_type"`
	IsDropPending  bool    `gorm:"not null;default:false;column:is_drop_pending" json:"is_drop_pending"`

	UnlockStatus          *string    `gorm:"column:unlock_status" json:"unlock_status"`
	ApprovedUntil         *time.Time `gorm:"column:approved_until" json:"approved_until"`
	TemporaryUnlockExpiry *time.Time `gorm:"column:temporary_unlock_expiry" json:"temporary_unlock_expiry"`

	AdminFeedback string     `gorm:"column:admin_feedback" json:"admin_feedback"`
	ReviewedBy    *uuid.UUID `gorm:"type:uuid;column:reviewed_by" json:"reviewed_by"`
	ReviewedAt    *time.Time `gorm:"column:reviewed_at" json:"reviewed_at"`

	// CarriedFromID links a carry-over successor back to the failed plan
	// it was materialized from.
	CarriedFromID *uuid.UUID `gorm:"type:uuid;index;column:carried_from_id" json:"carried_from_id"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ActionPlan) TableName() string {
	return "action_plan"
}
