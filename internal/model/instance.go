package model

import (
	"time"

	"chore-planner/internal/calendar"
)

// Status is the lifecycle state of a chore instance.
type Status string

const (
	StatusPending         Status = "pending"
	StatusCompleted       Status = "completed"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSkipped         Status = "skipped"
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusCompleted, StatusPendingApproval, StatusSkipped},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusRejected:        {StatusPending},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusApproved || s == StatusSkipped
}

// Instance is one dated occurrence of a Definition.
// (DefinitionID, DueDate) is unique; that index is what makes materialization idempotent.
type Instance struct {
	ID            uint          `gorm:"primaryKey"`
	DefinitionID  uint          `gorm:"not null;uniqueIndex:idx_instance_definition_due"`
	DueDate       calendar.Date `gorm:"not null;uniqueIndex:idx_instance_definition_due"`
	AssigneeID    *uint         `gorm:"index"`
	Status        Status        `gorm:"index;not null"`
	CompletedByID *uint
	CompletedAt   *time.Time
	PointsAwarded *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InstanceDraft is a not-yet-persisted instance.
type InstanceDraft struct {
	DueDate    calendar.Date
	AssigneeID *uint
}

// StatusChange carries the completion metadata written with a status update.
type StatusChange struct {
	CompletedByID *uint
	CompletedAt   *time.Time
	PointsAwarded *int
}
