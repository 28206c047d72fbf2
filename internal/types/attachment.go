package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	AttachmentFile = "file"
	AttachmentLink = "link"
)

// PlanAttachment is an opaque pointer into the evidence store. The engine
// never inspects contents; terminal transitions only require count >= 1.
type PlanAttachment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID    uuid.UUID `gorm:"type:uuid;index;not null;column:plan_id" json:"plan_id"`
	Kind      string    `gorm:"not null;column:kind" json:"kind"`
	URL       string    `gorm:"not null;column:url" json:"url"`
	Name      string    `gorm:"column:name" json:"name"`
	Title     string    `gorm:"column:title" json:"title"`
	Size      int64     `gorm:"column:size" json:"size"`
	Mime      string    `gorm:"column:mime" json:"mime"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (PlanAttachment) TableName() string {
	return "plan_attachment"
}
