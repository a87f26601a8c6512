package recurrence

import (
	"fmt"
	"strings"

	"chore-planner/internal/calendar"
)

// Kind is the closed set of recurrence shapes.
type Kind string

const (
	Once         Kind = "once"
	Daily        Kind = "daily"
	Weekly       Kind = "weekly"
	Monthly      Kind = "monthly"
	IntervalDays Kind = "interval_days"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{Once, Daily, Weekly, Monthly, IntervalDays}

// ParseKind accepts the canonical names plus the legacy "custom" and "x_days"
// spellings, both of which mean a fixed N-day interval.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(Once):
		return Once, nil
	case string(Daily):
		return Daily, nil
	case string(Weekly):
		return Weekly, nil
	case string(Monthly):
		return Monthly, nil
	case string(IntervalDays), "custom", "x_days":
		return IntervalDays, nil
	default:
		return "", &UnknownKindError{Kind: raw}
	}
}

func (k Kind) Valid() bool {
	switch k {
	case Once, Daily, Weekly, Monthly, IntervalDays:
		return true
	}
	return false
}

// Rule describes how a chore repeats.
type Rule struct {
	Kind     Kind
	Interval int
	Start    calendar.Date
	// End bounds expansion; nil means a rolling horizon.
	End             *calendar.Date
	DefaultAssignee *uint
}

// Validate rejects malformed rules before any expansion happens.
func (r Rule) Validate() error {
	if !r.Kind.Valid() {
		return &UnknownKindError{Kind: string(r.Kind)}
	}
	if r.Interval < 1 {
		return &ValidationError{Field: "interval", Reason: fmt.Sprintf("must be at least 1, got %d", r.Interval)}
	}
	if r.Start.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if r.End != nil && r.End.Before(r.Start) {
		return &ValidationError{Field: "end_date", Reason: fmt.Sprintf("%s is before start %s", r.End, r.Start)}
	}
	return nil
}

// ValidationError reports a malformed rule field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recurrence %s: %s", e.Field, e.Reason)
}

// UnknownKindError is returned for a recurrence kind outside the closed set.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown recurrence kind %q", e.Kind)
}
