package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "tripcal/internal/log"
)

// Extension properties a trip feed uses on its VEVENTs.
const (
	PropTripID             = "X-TRIP-ID"
	PropTripStatus         = "X-TRIP-STATUS"
	PropConversationName   = "X-CONVERSATION-NAME"
	PropConversationAvatar = "X-CONVERSATION-AVATAR"
	PropRelatedTo          = "RELATED-TO"
	PropRecurrenceID       = "RECURRENCE-ID"
)

// ParsedEvent is the normalized representation of a VEVENT. A VEVENT with
// RELATED-TO is an activity of the trip it points at; any other VEVENT is
// a trip.
type ParsedEvent struct {
	Source Source

	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	HasEnd bool
	AllDay bool

	TripID             string
	Status             string
	ConversationName   string
	ConversationAvatar string
	RelatedTo          string

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides an instance
	IsOverride bool
}

// IsActivity reports whether the event belongs to a trip.
func (e ParsedEvent) IsActivity() bool {
	return e.RelatedTo != ""
}

// ParseICS parses one feed body into events. A VEVENT that cannot be
// parsed is logged and skipped; the rest of the feed is kept.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func propValue(ve *ical.VEvent, name string) string {
	if p := ve.GetProperty(ical.ComponentProperty(name)); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = src

	out.UID = propValue(ve, string(ical.ComponentPropertyUniqueId))
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	out.Summary = propValue(ve, string(ical.ComponentPropertySummary))

	out.TripID = propValue(ve, PropTripID)
	out.Status = strings.ToUpper(propValue(ve, PropTripStatus))
	out.ConversationName = propValue(ve, PropConversationName)
	out.ConversationAvatar = propValue(ve, PropConversationAvatar)
	out.RelatedTo = propValue(ve, PropRelatedTo)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	start, err := ve.GetStartAt()
	if err != nil {
		if start, err = parseICSTime(dtStart.Value); err != nil {
			return out, err
		}
	}
	out.Start = start

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, err := ve.GetEndAt()
		if err != nil {
			end, err = parseICSTime(dtEnd.Value)
		}
		if err == nil {
			out.End = end
			out.HasEnd = true
		}
	}

	out.RawRRule = propValue(ve, string(ical.ComponentPropertyRrule))

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := propValue(ve, PropRecurrenceID); rid != "" {
		if t, err := parseICSTime(rid); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// isDateValue detects VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses basic DATE / DATE-TIME / UTC forms without TZID
// context. Floating values are read in time.Local.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
