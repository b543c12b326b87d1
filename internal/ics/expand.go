package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "tripcal/internal/log"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how activity recurrences are expanded.
type ExpandConfig struct {
	// Location is the zone activity dates are counted in. Nil means
	// time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound the expansion, inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE's expansion. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of an activity.
type Occurrence struct {
	UID       string
	RelatedTo string
	Summary   string
	Start     time.Time
}

// ExpandResult wraps the expanded occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandActivities expands activity events (RRULE, EXDATE and
// RECURRENCE-ID overrides) into occurrences inside the configured range,
// converted to cfg.Location. Trip events in the input are ignored.
func ExpandActivities(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var order []string

	for _, ev := range events {
		if !ev.IsActivity() {
			continue
		}
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		truncated := false
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Occurrences = append(result.Occurrences, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	start := ev.Start
	if o, ok := findOverrideForStart(overrides, start); ok {
		ev, start = o, o.Start
	}
	if start.Before(cfg.RangeStart) || start.After(cfg.RangeEnd) {
		return nil
	}
	return []Occurrence{makeOccurrence(ev, start, cfg.Location)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]Occurrence, 0, len(times))
	for _, start := range times {
		base := ev
		if o, ok := findOverrideForStart(overrides, start); ok {
			base, start = o, o.Start
		}
		out = append(out, makeOccurrence(base, start, cfg.Location))
	}
	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start time.Time, loc *time.Location) Occurrence {
	if ev.AllDay {
		// floating date: keep the calendar date, not the instant
		y, m, d := start.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	} else {
		start = start.In(loc)
	}
	return Occurrence{
		UID:       ev.UID,
		RelatedTo: ev.RelatedTo,
		Summary:   ev.Summary,
		Start:     start,
	}
}
