package production

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day, the granularity of every production entry
// =============================================================================

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form. The zero value "" means unset.
type Date string

// ParseDate validates s and returns it normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func DateOf(t time.Time) Date { return Date(t.Format(DateLayout)) }

func Today() Date { return DateOf(time.Now()) }

// Time returns midnight UTC of d. Unset or malformed dates yield the zero time.
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

func (d Date) IsZero() bool   { return d == "" }
func (d Date) String() string { return string(d) }

// compare orders dates by year width first, so "10000-01-01" follows
// "9999-12-31".
func (d Date) compare(other Date) int {
	if len(d) != len(other) {
		return len(d) - len(other)
	}
	return strings.Compare(string(d), string(other))
}

func (d Date) Before(other Date) bool        { return d.compare(other) < 0 }
func (d Date) After(other Date) bool         { return d.compare(other) > 0 }
func (d Date) BeforeOrEqual(other Date) bool { return d.compare(other) <= 0 }
func (d Date) AddDays(n int) Date            { return DateOf(d.Time().AddDate(0, 0, n)) }
func (d Date) Weekday() time.Weekday         { return d.Time().Weekday() }

// =============================================================================
// PERIOD - Inclusive date range for reports
// =============================================================================

// Period is the inclusive range [Start, End].
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// Days returns every calendar day in the period.
func (p Period) Days() []Date {
	start, end := p.Start.Time(), p.End.Time()
	var days []Date
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		days = append(days, DateOf(current))
	}
	return days
}

// Len returns the number of calendar days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return int((p.End.Time().Unix()-p.Start.Time().Unix())/86400) + 1
}

// MaxDailyDays bounds a day-by-day report.
const MaxDailyDays = 366

// CheckDaily refuses periods too long to report day by day.
func (p Period) CheckDaily() error {
	if n := p.Len(); n > MaxDailyDays {
		return invalid("period", "daily report covers %d days, at most %d allowed", n, MaxDailyDays)
	}
	return nil
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// WeekOf returns the Monday to Sunday week containing d.
func WeekOf(d Date) Period {
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDays(-offset)
	return Period{Start: monday, End: monday.AddDays(6)}
}

// RecentWeeks returns the last n Monday to Sunday weeks ending with the week
// of today, oldest first.
func RecentWeeks(today Date, n int) []Period {
	current := WeekOf(today)
	weeks := make([]Period, n)
	for i := 0; i < n; i++ {
		start := current.Start.AddDays(-7 * (n - 1 - i))
		weeks[i] = Period{Start: start, End: start.AddDays(6)}
	}
	return weeks
}

// MonthRange returns the calendar month containing d.
func MonthRange(d Date) Period {
	t := d.Time()
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return Period{Start: DateOf(first), End: DateOf(last)}
}
