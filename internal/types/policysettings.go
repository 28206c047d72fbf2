package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PolicySettings is the administrator-configured rulebook consumed by the
// lifecycle engines. A single row is kept; every threshold observed in the
// product is configuration, not a constant.
type PolicySettings struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	LockEnabled   bool `gorm:"not null;default:true;column:lock_enabled" json:"lock_enabled"`
	LockCutoffDay int  `gorm:"not null;default:6;column:lock_cutoff_day" json:"lock_cutoff_day"`

	StrictGrading bool `gorm:"not null;default:true;column:strict_grading" json:"strict_grading"`
	// Thresholds maps priority bucket -> minimum passing score.
	Thresholds datatypes.JSONType[map[string]int] `gorm:"column:thresholds" json:"thresholds"`

	// AttentionMinLengths maps escalation tier -> minimum blocker reason length.
	AttentionMinLengths datatypes.JSONType[map[string]int] `gorm:"column:attention_min_lengths" json:"attention_min_lengths"`

	GapAnalysisMinLength       int `gorm:"not null;default:10;column:gap_analysis_min_length" json:"gap_analysis_min_length"`
	DropJustificationMinLength int `gorm:"not null;default:30;column:drop_justification_min_length" json:"drop_justification_min_length"`
	// DropApprovalMinBucket: drops of plans at or above this bucket need
	// explicit approval. Empty disables the approval gate.
	DropApprovalMinBucket string `gorm:"column:drop_approval_min_bucket" json:"drop_approval_min_bucket"`

	RevisionWindowMaxDays int `gorm:"not null;default:14;column:revision_window_max_days" json:"revision_window_max_days"`
	// CarryOverPenalty is subtracted from a plan's score ceiling when a
	// failed grade is forced into carry-over.
	CarryOverPenalty int `gorm:"not null;default:10;column:carry_over_penalty" json:"carry_over_penalty"`

	GapCategories     datatypes.JSONType[[]string] `gorm:"column:gap_categories" json:"gap_categories"`
	BlockerCategories datatypes.JSONType[[]string] `gorm:"column:blocker_categories" json:"blocker_categories"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PolicySettings) TableName() string {
	return "policy_settings"
}
