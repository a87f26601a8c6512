package calendar

import (
	"fmt"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Calendar renders instants as calendar dates in the household time zone.
// Only "today" depends on the zone; stepping between dates is done on Date,
// which has no clock time for a DST shift to move.
type Calendar struct {
	loc   *time.Location
	clock Clock
}

func New(loc *time.Location, clock Clock) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Calendar{loc: loc, clock: clock}
}

// Load resolves an IANA zone name such as "Europe/Berlin".
func Load(zone string, clock Clock) (*Calendar, error) {
	if zone == "" {
		zone = "UTC"
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return New(loc, clock), nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) Now() time.Time { return c.clock.Now().In(c.loc) }

// Today is the current date in the household zone, not the process zone.
func (c *Calendar) Today() Date {
	return c.DateOf(c.clock.Now())
}

// DateOf renders an arbitrary instant as a household calendar date.
func (c *Calendar) DateOf(t time.Time) Date {
	y, m, d := t.In(c.loc).Date()
	return Date{Year: y, Month: m, Day: d}
}
