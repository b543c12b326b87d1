// Package calendar turns a month cursor and a list of trips into the
// month view: the fixed 6-week grid, start-date buckets, range highlights
// and the controller that navigates between months.
package calendar

import (
	"fmt"
	"time"
)

// KeyLayout is the layout of date keys and start-date buckets.
const KeyLayout = "2006-01-02"

// MonthLayout is the layout of month cursors in URLs and config.
const MonthLayout = "2006-01"

// DateKey formats t's own calendar date. It never converts t to another
// zone first, so a trip starting late on the 5th in its zone keys as the 5th.
func DateKey(t time.Time) string {
	return t.Format(KeyLayout)
}

// dateOf strips t to its calendar date, comparable across zones.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	return dateOf(a).Equal(dateOf(b))
}

// MonthStart returns midnight on the first of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// ParseMonth parses "YYYY-MM" into the first of that month in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(MonthLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return t, nil
}

// ParseDate parses "YYYY-MM-DD" into midnight of that date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(KeyLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// VisibleRange is the window trips are selected from for a month view:
// the first of the previous month through the last day of the next month.
func VisibleRange(cursor time.Time) (from, to time.Time) {
	first := MonthStart(cursor)
	return first.AddDate(0, -1, 0), first.AddDate(0, 2, -1)
}
