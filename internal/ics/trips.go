package ics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	appLog "tripcal/internal/log"
	"tripcal/internal/model"
)

// BuildConfig controls how parsed events become calendar trips.
type BuildConfig struct {
	// Location is the zone trip and activity dates are read in.
	Location *time.Location

	// RangeStart / RangeEnd bound activity expansion.
	RangeStart time.Time
	RangeEnd   time.Time
}

// TripID returns the feed's X-TRIP-ID or a stable ID derived from the
// source and UID.
func TripID(ev ParsedEvent) string {
	if ev.TripID != "" {
		return ev.TripID
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(ev.Source.ID+"#"+ev.UID)).String()
}

// BuildTrips turns parsed feed events into trips, in feed order.
//
// Non-activity VEVENTs are trips. An all-day DTEND is exclusive, so the
// trip ends the day before it. Activities are expanded and counted per
// date inside their trip; each trip reports its busiest activity date
// (earliest on a tie) as ScheduleDate. Ranges are not validated: a trip
// ending before it starts is passed through as is.
func BuildTrips(events []ParsedEvent, cfg BuildConfig) ([]model.Trip, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	trips := make([]model.Trip, 0)
	byRef := make(map[string]int)

	for _, ev := range events {
		if ev.IsActivity() || ev.IsOverride {
			continue
		}
		if ev.RawRRule != "" {
			appLog.Debug("ics: ignoring RRULE on trip event", "uid", ev.UID)
		}

		start, end := tripDates(ev, loc)
		trip := model.Trip{
			ID:                 TripID(ev),
			SourceID:           ev.Source.ID,
			Title:              ev.Summary,
			StartDate:          start,
			EndDate:            end,
			ConversationAvatar: ev.ConversationAvatar,
			ConversationName:   ev.ConversationName,
			Status:             model.ParseTripStatus(ev.Status),
		}

		idx := len(trips)
		trips = append(trips, trip)
		byRef[ev.UID] = idx
		byRef[trip.ID] = idx
	}

	if len(trips) == 0 {
		return trips, nil
	}

	expanded, err := ExpandActivities(events, ExpandConfig{
		Location:   loc,
		RangeStart: cfg.RangeStart,
		RangeEnd:   cfg.RangeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("expand activities: %w", err)
	}

	counts := make([]map[time.Time]int, len(trips))
	for _, occ := range expanded.Occurrences {
		idx, ok := byRef[occ.RelatedTo]
		if !ok {
			appLog.Debug("ics: activity for unknown trip", "uid", occ.UID, "related_to", occ.RelatedTo)
			continue
		}
		day := midnight(occ.Start, loc)
		if day.Before(trips[idx].StartDate) || day.After(trips[idx].EndDate) {
			continue
		}
		if counts[idx] == nil {
			counts[idx] = make(map[time.Time]int)
		}
		counts[idx][day]++
	}

	for i := range trips {
		for day, n := range counts[i] {
			best := trips[i].ScheduleDate
			if n > trips[i].SchedulesOnDate || (n == trips[i].SchedulesOnDate && day.Before(best)) {
				trips[i].ScheduleDate = day
				trips[i].SchedulesOnDate = n
			}
		}
	}

	return trips, nil
}

// tripDates returns the inclusive calendar dates of a trip event, as
// midnights in loc.
func tripDates(ev ParsedEvent, loc *time.Location) (time.Time, time.Time) {
	startAt := instant(ev.Start, ev.AllDay, loc)
	start := midnight(startAt, loc)
	if !ev.HasEnd {
		return start, start
	}

	endAt := instant(ev.End, ev.AllDay, loc)
	if endAt.After(startAt) {
		// the end instant is exclusive
		return start, midnight(endAt.Add(-time.Nanosecond), loc)
	}
	return start, midnight(endAt, loc)
}

// instant places t in loc. All-day values are floating dates, so their
// calendar date is kept rather than converted.
func instant(t time.Time, allDay bool, loc *time.Location) time.Time {
	if allDay {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return t.In(loc)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
