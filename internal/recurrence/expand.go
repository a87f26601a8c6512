package recurrence

import (
	"time"

	"chore-planner/internal/calendar"
)

// DefaultHorizonDays is used when the caller passes a non-positive horizon.
const DefaultHorizonDays = 30

// Expand returns the ordered due dates of rule from today through the rule's
// end date, or today+horizonDays when the rule is open-ended. Dates are never
// produced in the past.
//
// Repeating rules keep the phase of their start date: occurrence n is always
// counted from rule.Start, so expanding on a later day yields a suffix of the
// same sequence. A one-off rule whose date has passed is due today.
func Expand(cal *calendar.Calendar, rule Rule, horizonDays int) ([]calendar.Date, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	today := cal.Today()
	end := today.AddDays(horizonDays)
	if rule.End != nil {
		end = *rule.End
	}

	if rule.Kind == Once {
		due := rule.Start
		if due.Before(today) {
			due = today
		}
		if due.After(end) {
			return nil, nil
		}
		return []calendar.Date{due}, nil
	}

	var dates []calendar.Date
	for n := firstStep(rule, today); ; n++ {
		current, err := Occurrence(rule, n)
		if err != nil {
			return nil, err
		}
		if current.After(end) {
			break
		}
		if current.Before(today) {
			continue
		}
		dates = append(dates, current)
	}
	return dates, nil
}

// Occurrence returns the n-th due date of a repeating rule, counting the start date as 0.
func Occurrence(rule Rule, n int) (calendar.Date, error) {
	switch rule.Kind {
	case Daily, IntervalDays:
		return rule.Start.AddDays(n * rule.Interval), nil
	case Weekly:
		return rule.Start.AddDays(n * 7 * rule.Interval), nil
	case Monthly:
		return AddMonthsClamped(rule.Start, n*rule.Interval), nil
	case Once:
		return rule.Start, nil
	default:
		return calendar.Date{}, &UnknownKindError{Kind: string(rule.Kind)}
	}
}

// firstStep skips the day-based occurrences that lie entirely before today.
// Monthly rules start from 0 and let Expand drop the elapsed months.
func firstStep(rule Rule, today calendar.Date) int {
	if !rule.Start.Before(today) {
		return 0
	}
	var step int
	switch rule.Kind {
	case Daily, IntervalDays:
		step = rule.Interval
	case Weekly:
		step = 7 * rule.Interval
	default:
		return 0
	}
	return (rule.Start.DaysUntil(today) + step - 1) / step
}

// AddMonthsClamped moves anchor forward by months, keeping the anchor's day
// of month but clamping it to the last day of shorter months. Each result is
// computed from the anchor, so Jan 31 yields Feb 28 and then Mar 31.
func AddMonthsClamped(anchor calendar.Date, months int) calendar.Date {
	total := int(anchor.Month) - 1 + months
	year := anchor.Year + total/12
	month := time.Month(total%12 + 1)
	if total < 0 && total%12 != 0 {
		year--
		month = time.Month(total%12 + 13)
	}
	day := anchor.Day
	if last := calendar.DaysIn(year, month); day > last {
		day = last
	}
	return calendar.Date{Year: year, Month: month, Day: day}
}
