package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Timeline entry kinds.
const (
	TimelineProgressUpdate  = "progress_update"
	TimelineBlockerReport   = "blocker_report"
	TimelineBlockerResolved = "blocker_resolved"
	TimelineComment         = "comment"
)

// Markers distinguishing how an entry was produced.
const (
	MarkerResolutionNote = "resolution_note"
	MarkerAutoResolved   = "auto_resolved"
	MarkerRegrade        = "regrade_overwrite"
	MarkerDateOverride   = "date_override"
)

// TimelineEntry is append-only; rows are never updated or deleted.
type TimelineEntry struct {
	ID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID  uuid.UUID      `gorm:"type:uuid;index;not null;column:plan_id" json:"plan_id"`
	Kind    string         `gorm:"not null;column:kind" json:"kind"`
	Message string         `gorm:"not null;column:message" json:"message"`
	Marker  string         `gorm:"column:marker" json:"marker,omitempty"`
	ActorID uuid.UUID      `gorm:"type:uuid;column:actor_id" json:"actor_id"`
	Meta    datatypes.JSON `gorm:"column:meta" json:"meta,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (TimelineEntry) TableName() string {
	return "plan_timeline_entry"
}
