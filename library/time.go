package library

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date (day granularity, UTC)
// =============================================================================

// Date is a calendar date with no time-of-day component. Due dates and
// ledger dates are Dates; loan start/return stamps are DateTimes.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

func Today() Date { return DateOf(time.Now()) }

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysUntil returns the whole days from d to other (negative if other is
// in the past).
func (d Date) DaysUntil(other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

func (d Date) IsZero() bool    { return d.t.IsZero() }
func (d Date) String() string  { return d.t.Format(dateLayout) }
func (d Date) Time() time.Time { return d.t }

// =============================================================================
// DATETIME - Instant with second precision (UTC)
// =============================================================================

// DateTime stamps loan starts and returns. Stored on disk as separate date
// and clock fields, so precision is one second.
type DateTime struct {
	t time.Time
}

const clockLayout = "15:04:05"

func DateTimeOf(t time.Time) DateTime {
	u := t.UTC()
	return DateTime{t: time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, time.UTC)}
}

// ParseDateTime reassembles a DateTime from its date and clock fields.
func ParseDateTime(date, clock string) (DateTime, error) {
	t, err := time.Parse(dateLayout+" "+clockLayout, date+" "+clock)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid datetime %q %q: %w", date, clock, err)
	}
	return DateTime{t: t}, nil
}

func (dt DateTime) Date() Date          { return DateOf(dt.t) }
func (dt DateTime) DateString() string  { return dt.t.Format(dateLayout) }
func (dt DateTime) ClockString() string { return dt.t.Format(clockLayout) }
func (dt DateTime) String() string      { return dt.DateString() + " " + dt.ClockString() }

func (dt DateTime) Before(other DateTime) bool { return dt.t.Before(other.t) }
func (dt DateTime) After(other DateTime) bool  { return dt.t.After(other.t) }
func (dt DateTime) Equal(other DateTime) bool  { return dt.t.Equal(other.t) }
func (dt DateTime) IsZero() bool               { return dt.t.IsZero() }
func (dt DateTime) Time() time.Time            { return dt.t }
