package recurrence_test

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chore-planner/internal/calendar"
	"chore-planner/internal/recurrence"
)

func calendarAt(t *testing.T, zone, today string) *calendar.Calendar {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	require.NoError(t, err)
	d := calendar.MustParseDate(today)
	now := time.Date(d.Year, d.Month, d.Day, 9, 0, 0, 0, loc)
	return calendar.New(loc, calendar.FixedClock{At: now})
}

func datePtr(raw string) *calendar.Date {
	d := calendar.MustParseDate(raw)
	return &d
}

func isoDates(dates []calendar.Date) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	return out
}

func TestExpandDailyIncludesStartAndHorizonEnd(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-03-01")
	rule := recurrence.Rule{Kind: recurrence.Daily, Interval: 1, Start: calendar.MustParseDate("2025-03-01")}

	dates, err := recurrence.Expand(cal, rule, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-03-01", "2025-03-02", "2025-03-03",
		"2025-03-04", "2025-03-05", "2025-03-06",
	}, isoDates(dates))
}

func TestExpandOnceClampsElapsedStartToToday(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-06-01")
	rule := recurrence.Rule{Kind: recurrence.Once, Interval: 1, Start: calendar.MustParseDate("2025-01-01")}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-01"}, isoDates(dates))
}

func TestExpandOnceInFuture(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-06-01")
	rule := recurrence.Rule{Kind: recurrence.Once, Interval: 1, Start: calendar.MustParseDate("2025-06-10")}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-10"}, isoDates(dates))
}

func TestExpandBeyondHorizonIsEmpty(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-06-01")
	rule := recurrence.Rule{Kind: recurrence.Once, Interval: 1, Start: calendar.MustParseDate("2025-12-24")}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestExpandEndedRuleIsEmpty(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-06-01")
	rule := recurrence.Rule{
		Kind:     recurrence.Daily,
		Interval: 1,
		Start:    calendar.MustParseDate("2025-01-01"),
		End:      datePtr("2025-02-01"),
	}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestExpandWeeklyAndIntervalSteps(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-03-01")

	weekly, err := recurrence.Expand(cal, recurrence.Rule{
		Kind: recurrence.Weekly, Interval: 2, Start: calendar.MustParseDate("2025-03-03"),
	}, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-03", "2025-03-17", "2025-03-31"}, isoDates(weekly))

	every3, err := recurrence.Expand(cal, recurrence.Rule{
		Kind: recurrence.IntervalDays, Interval: 3, Start: calendar.MustParseDate("2025-03-01"),
		End: datePtr("2025-03-10"),
	}, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-01", "2025-03-04", "2025-03-07", "2025-03-10"}, isoDates(every3))
}

func TestExpandEndDateOverridesHorizon(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-03-01")
	rule := recurrence.Rule{
		Kind: recurrence.Daily, Interval: 1,
		Start: calendar.MustParseDate("2025-03-01"),
		End:   datePtr("2025-03-03"),
	}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03"}, isoDates(dates))
}

func TestExpandMonthlyClampsToMonthEndWithoutDrift(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-01-31")
	rule := recurrence.Rule{
		Kind: recurrence.Monthly, Interval: 1,
		Start: calendar.MustParseDate("2025-01-31"),
		End:   datePtr("2025-06-30"),
	}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-01-31", "2025-02-28", "2025-03-31",
		"2025-04-30", "2025-05-31", "2025-06-30",
	}, isoDates(dates))
}

func TestExpandMonthlyLeapYear(t *testing.T) {
	cal := calendarAt(t, "UTC", "2024-01-31")
	rule := recurrence.Rule{
		Kind: recurrence.Monthly, Interval: 1,
		Start: calendar.MustParseDate("2024-01-31"),
		End:   datePtr("2024-03-31"),
	}

	dates, err := recurrence.Expand(cal, rule, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-31", "2024-02-29", "2024-03-31"}, isoDates(dates))
}

func TestExpandElapsedStartKeepsPhase(t *testing.T) {
	for name, tc := range map[string]struct {
		rule  recurrence.Rule
		today string
		want  []string
	}{
		"monthly clamped anchor": {
			rule: recurrence.Rule{
				Kind: recurrence.Monthly, Interval: 1,
				Start: calendar.MustParseDate("2025-01-31"),
				End:   datePtr("2025-06-30"),
			},
			today: "2025-03-05",
			want:  []string{"2025-03-31", "2025-04-30", "2025-05-31", "2025-06-30"},
		},
		"every second month": {
			rule: recurrence.Rule{
				Kind: recurrence.Monthly, Interval: 2,
				Start: calendar.MustParseDate("2025-01-15"),
				End:   datePtr("2025-09-30"),
			},
			today: "2025-03-16",
			want:  []string{"2025-05-15", "2025-07-15", "2025-09-15"},
		},
		"weekly": {
			rule: recurrence.Rule{
				Kind: recurrence.Weekly, Interval: 1,
				Start: calendar.MustParseDate("2025-03-01"),
			},
			today: "2025-03-02",
			want:  []string{"2025-03-08", "2025-03-15"},
		},
		"weekly on its own day": {
			rule: recurrence.Rule{
				Kind: recurrence.Weekly, Interval: 2,
				Start: calendar.MustParseDate("2025-03-03"),
			},
			today: "2025-03-17",
			want:  []string{"2025-03-17", "2025-03-31"},
		},
		"interval days": {
			rule: recurrence.Rule{
				Kind: recurrence.IntervalDays, Interval: 3,
				Start: calendar.MustParseDate("2025-03-01"),
				End:   datePtr("2025-03-15"),
			},
			today: "2025-03-05",
			want:  []string{"2025-03-07", "2025-03-10", "2025-03-13"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			cal := calendarAt(t, "UTC", tc.today)
			dates, err := recurrence.Expand(cal, tc.rule, 14)
			require.NoError(t, err)
			assert.Equal(t, tc.want, isoDates(dates))
		})
	}
}

func TestExpandLaterDayIsSuffixOfEarlierDay(t *testing.T) {
	rule := recurrence.Rule{Kind: recurrence.Weekly, Interval: 1, Start: calendar.MustParseDate("2025-03-01")}

	earlier, err := recurrence.Expand(calendarAt(t, "UTC", "2025-03-01"), rule, 30)
	require.NoError(t, err)
	later, err := recurrence.Expand(calendarAt(t, "UTC", "2025-03-04"), rule, 30)
	require.NoError(t, err)

	assert.Equal(t, isoDates(earlier[1:]), isoDates(later))
}

func TestOccurrence(t *testing.T) {
	rule := recurrence.Rule{Kind: recurrence.Monthly, Interval: 1, Start: calendar.MustParseDate("2025-01-31")}
	got, err := recurrence.Occurrence(rule, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-28", got.String())
	got, err = recurrence.Occurrence(rule, 2)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-31", got.String())

	_, err = recurrence.Occurrence(recurrence.Rule{Kind: "hourly", Interval: 1}, 1)
	var kErr *recurrence.UnknownKindError
	require.ErrorAs(t, err, &kErr)
}

func TestExpandDailyAcrossDSTHasNoGapsOrRepeats(t *testing.T) {
	for _, tc := range []struct {
		zone, today string
	}{
		{"America/New_York", "2025-03-06"}, // spring forward 03-09
		{"America/New_York", "2025-10-30"}, // fall back 11-02
		{"Europe/Berlin", "2025-03-27"},    // spring forward 03-30
		{"Australia/Lord_Howe", "2025-04-03"},
	} {
		t.Run(tc.zone+"/"+tc.today, func(t *testing.T) {
			cal := calendarAt(t, tc.zone, tc.today)
			rule := recurrence.Rule{Kind: recurrence.Daily, Interval: 1, Start: calendar.MustParseDate(tc.today)}

			dates, err := recurrence.Expand(cal, rule, 10)
			require.NoError(t, err)
			require.Len(t, dates, 11)
			for i := 1; i < len(dates); i++ {
				assert.Equal(t, dates[i-1].AddDays(1), dates[i], "day %d", i)
			}
		})
	}
}

func TestExpandRejectsInvalidRules(t *testing.T) {
	cal := calendarAt(t, "UTC", "2025-03-01")

	_, err := recurrence.Expand(cal, recurrence.Rule{Kind: recurrence.Daily, Interval: 0, Start: calendar.MustParseDate("2025-03-01")}, 5)
	var vErr *recurrence.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "interval", vErr.Field)

	_, err = recurrence.Expand(cal, recurrence.Rule{
		Kind: recurrence.Daily, Interval: 1,
		Start: calendar.MustParseDate("2025-03-05"),
		End:   datePtr("2025-03-01"),
	}, 5)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "end_date", vErr.Field)

	_, err = recurrence.Expand(cal, recurrence.Rule{Kind: "fortnightly", Interval: 1, Start: calendar.MustParseDate("2025-03-01")}, 5)
	var kErr *recurrence.UnknownKindError
	require.True(t, errors.As(err, &kErr))
	assert.Equal(t, "fortnightly", kErr.Kind)
}

func TestParseKindAliases(t *testing.T) {
	for raw, want := range map[string]recurrence.Kind{
		"once":          recurrence.Once,
		"Daily":         recurrence.Daily,
		" weekly ":      recurrence.Weekly,
		"monthly":       recurrence.Monthly,
		"interval_days": recurrence.IntervalDays,
		"custom":        recurrence.IntervalDays,
		"x_days":        recurrence.IntervalDays,
	} {
		got, err := recurrence.ParseKind(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := recurrence.ParseKind("yearly")
	require.Error(t, err)
}

func TestAddMonthsClamped(t *testing.T) {
	anchor := calendar.MustParseDate("2025-01-31")
	assert.Equal(t, "2025-02-28", recurrence.AddMonthsClamped(anchor, 1).String())
	assert.Equal(t, "2025-12-31", recurrence.AddMonthsClamped(anchor, 11).String())
	assert.Equal(t, "2026-02-28", recurrence.AddMonthsClamped(anchor, 13).String())
	assert.Equal(t, "2024-12-31", recurrence.AddMonthsClamped(anchor, -1).String())
	assert.Equal(t, "2024-01-31", recurrence.AddMonthsClamped(anchor, -12).String())
}
