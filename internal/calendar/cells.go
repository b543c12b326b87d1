package calendar

import (
	"tripcal/internal/model"
)

// Treatment is how a grid cell is drawn.
type Treatment string

const (
	TreatmentNone  Treatment = "none"
	TreatmentStart Treatment = "start" // trip avatar
	TreatmentRange Treatment = "range" // inside a trip, after its start
	TreatmentEvent Treatment = "event" // legacy marker
)

// Cell is a grid day plus what is drawn on it.
type Cell struct {
	model.CalendarDay

	Treatment  Treatment    `json:"treatment"`
	StartTrips []model.Trip `json:"start_trips,omitempty"`
	RangeTrip  *model.Trip  `json:"range_trip,omitempty"`

	// Activities is the number of scheduled activities on this day.
	Activities int `json:"activities"`
}

// BuildCells decides the treatment of every grid day.
//
// A day where any trip starts gets the avatar treatment even when it also
// falls inside another trip's range. The legacy events map is only
// consulted when no trips are supplied at all.
func BuildCells(grid []model.CalendarDay, trips []model.Trip, events map[string]bool) []Cell {
	index := IndexByStartDate(trips)

	activities := make(map[string]int)
	for _, trip := range trips {
		if trip.ScheduleDate.IsZero() || trip.SchedulesOnDate <= 0 {
			continue
		}
		activities[DateKey(trip.ScheduleDate)] += trip.SchedulesOnDate
	}

	cells := make([]Cell, 0, len(grid))
	for _, day := range grid {
		cell := Cell{
			CalendarDay: day,
			Treatment:   TreatmentNone,
			Activities:  activities[day.Key],
		}

		switch {
		case len(index[day.Key]) > 0:
			cell.Treatment = TreatmentStart
			cell.StartTrips = index[day.Key]
		case len(trips) > 0:
			if trip, ok := MatchRange(day.Date, trips); ok {
				cell.Treatment = TreatmentRange
				cell.RangeTrip = &trip
			}
		case events[day.Key]:
			cell.Treatment = TreatmentEvent
		}

		cells = append(cells, cell)
	}
	return cells
}
