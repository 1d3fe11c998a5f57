package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusComplete   = "Complete"
)

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

type Todo struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Status      string     `json:"status" gorm:"not null;default:'Pending'"`
	Priority    string     `json:"priority"`
	// PriorityLevel is the numeric rank of Priority, stored so that
	// priority sorting orders High > Medium > Low instead of lexically.
	// It must be recomputed whenever Priority changes.
	PriorityLevel int        `json:"priority_level" gorm:"not null;default:0"`
	DueDate       *time.Time `json:"due_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PriorityRank maps a priority label to its ordering value. Unknown or
// empty labels rank below Low.
func PriorityRank(priority string) int {
	switch priority {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}
