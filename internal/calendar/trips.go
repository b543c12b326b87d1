package calendar

import (
	"time"

	"tripcal/internal/model"
)

// MatchRange returns the first trip, in list order, whose range contains
// day: after its start date and up to and including its end date. The start
// date itself carries the trip's avatar instead of the range highlight.
// A trip whose end is before its start never matches.
func MatchRange(day time.Time, trips []model.Trip) (model.Trip, bool) {
	d := dateOf(day)
	for _, trip := range trips {
		if d.After(dateOf(trip.StartDate)) && !d.After(dateOf(trip.EndDate)) {
			return trip, true
		}
	}
	return model.Trip{}, false
}

// IndexByStartDate buckets trips by DateKey of their start date. Order
// within a bucket follows the input; duplicates in the input stay
// duplicated.
func IndexByStartDate(trips []model.Trip) map[string][]model.Trip {
	index := make(map[string][]model.Trip)
	for _, trip := range trips {
		key := DateKey(trip.StartDate)
		index[key] = append(index[key], trip)
	}
	return index
}

// Overlaps reports whether trip's inclusive date range touches [from, to].
func Overlaps(trip model.Trip, from, to time.Time) bool {
	return !dateOf(trip.EndDate).Before(dateOf(from)) && !dateOf(trip.StartDate).After(dateOf(to))
}
