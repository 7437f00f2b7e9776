package lifecycle

import (
	"time"
)

// =============================================================================
// DATE - Calendar day without a time component
// =============================================================================

// Date identifies the calendar day a report covers. Reports are keyed by
// (employee, Date); all comparisons are at day granularity in UTC.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (d Date) IsWorkday() bool { return !d.IsWeekend() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// WORK WEEK
// =============================================================================

// WorkWeekOf returns the Monday..Friday range containing d. On a weekend
// the window rolls forward to the coming week, so weekend dashboards show
// the week about to start rather than the one just closed.
func WorkWeekOf(d Date) (start, end Date) {
	// time.Weekday is Sunday=0; shift to Monday=0.
	offset := (int(d.Weekday()) + 6) % 7
	if offset >= 5 {
		start = d.AddDays(7 - offset)
	} else {
		start = d.AddDays(-offset)
	}
	end = start.AddDays(4)
	return start, end
}
