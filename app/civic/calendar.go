package civic

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	DefaultZone = "America/Los_Angeles"
	DateLayout  = "2006-01-02"
)

// Calendar answers date questions in the campus time zone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

func NewCalendar(zone string) (*Calendar, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %s: %w", zone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// WithClock returns a copy of the calendar that reads the current time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	return &Calendar{loc: c.loc, now: now}
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

func (c *Calendar) DateString(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

func (c *Calendar) StartOfDay(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// EndOfDay is the exclusive upper bound of t's civic day: the start of the next one.
// Adding a calendar day instead of 24h keeps DST transition days at 23 or 25 hours.
func (c *Calendar) EndOfDay(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, c.loc)
}

// ParseDate parses YYYY-MM-DD and returns the start of that civic day.
func (c *Calendar) ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *Calendar) Today() string {
	return c.DateString(c.now())
}
