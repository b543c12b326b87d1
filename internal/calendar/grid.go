package calendar

import (
	"time"

	"tripcal/internal/model"
)

// GridSize is six full weeks, so the grid height never changes between
// months of different lengths.
const GridSize = 42

// GenerateGrid returns the 42 days shown for cursor's month, starting on
// the Sunday on or before the first of the month. Days are built in the
// cursor's location; IsToday compares against now in that same location.
func GenerateGrid(cursor, now time.Time) []model.CalendarDay {
	first := MonthStart(cursor)
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))
	today := now.In(first.Location())

	days := make([]model.CalendarDay, 0, GridSize)
	for i := 0; i < GridSize; i++ {
		day := gridStart.AddDate(0, 0, i)
		days = append(days, model.CalendarDay{
			Date:           day,
			Key:            DateKey(day),
			Day:            day.Day(),
			IsCurrentMonth: day.Month() == first.Month(),
			IsToday:        SameDate(day, today),
		})
	}
	return days
}
