package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RolePIC       = "pic"
	RoleLeader    = "leader"
	RoleAdmin     = "admin"
	RoleExecutive = "executive"
	RoleGrader    = "grader"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password     string    `gorm:"not null;column:password" json:"-"`
	Name         string    `gorm:"not null;column:name" json:"name"`
	Role         string    `gorm:"not null;column:role" json:"role"`
	DepartmentID uuid.UUID `gorm:"type:uuid;index;column:department_id" json:"department_id"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
