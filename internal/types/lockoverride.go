package types

import (
	"time"

	"github.com/google/uuid"
)

// LockOverride is a per-month schedule entry that takes precedence over the
// derived cutoff date. ForceOpen keeps the month editable indefinitely;
// otherwise LockDate replaces the computed lock instant.
type LockOverride struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Month     int        `gorm:"not null;uniqueIndex:idx_lock_override_period;column:month" json:"month"`
	Year      int        `gorm:"not null;uniqueIndex:idx_lock_override_period;column:year" json:"year"`
	ForceOpen bool       `gorm:"not null;default:false;column:force_open" json:"force_open"`
	LockDate  *time.Time `gorm:"column:lock_date" json:"lock_date"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (LockOverride) TableName() string {
	return "lock_override"
}
