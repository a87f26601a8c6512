package model

import (
	"time"

	"chore-planner/internal/calendar"
	"chore-planner/internal/recurrence"
)

// Definition is the reusable description of a recurring chore.
// It is retired by clearing Active, never deleted while instances point at it.
type Definition struct {
	ID                uint  `gorm:"primaryKey"`
	CategoryID        *uint `gorm:"index"`
	CreatedByID       uint
	Title             string
	Description       string
	Points            int
	DueTime           string // HH:MM, optional
	RequireApproval   bool
	Active            bool `gorm:"index"`
	RecurType         recurrence.Kind
	RecurInterval     int
	StartDate         calendar.Date
	EndDate           *calendar.Date
	DefaultAssigneeID *uint `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Rule extracts the recurrence rule embedded in the definition.
func (d Definition) Rule() recurrence.Rule {
	return recurrence.Rule{
		Kind:            d.RecurType,
		Interval:        d.RecurInterval,
		Start:           d.StartDate,
		End:             d.EndDate,
		DefaultAssignee: d.DefaultAssigneeID,
	}
}

// SameSchedule reports whether two definitions expand to the same dates.
func (d Definition) SameSchedule(other Definition) bool {
	if d.RecurType != other.RecurType || d.RecurInterval != other.RecurInterval || d.StartDate != other.StartDate {
		return false
	}
	switch {
	case d.EndDate == nil && other.EndDate == nil:
		return true
	case d.EndDate == nil || other.EndDate == nil:
		return false
	default:
		return *d.EndDate == *other.EndDate
	}
}

// SameAssignee compares the default assignees of two definitions.
func SameAssignee(a, b *uint) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}
