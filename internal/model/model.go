package model

import "time"

// DefaultGroupName is shown for trips whose owning conversation has no name.
const DefaultGroupName = "Nhóm không tên"

// TripStatus is the planning state of a trip as reported by its feed.
type TripStatus string

const (
	TripStatusPlanning  TripStatus = "PLANNING"
	TripStatusConfirmed TripStatus = "CONFIRMED"
	TripStatusOngoing   TripStatus = "ONGOING"
	TripStatusCompleted TripStatus = "COMPLETED"
	TripStatusCancelled TripStatus = "CANCELLED"
)

// ParseTripStatus normalizes a feed value. Unknown or empty values map to
// PLANNING.
func ParseTripStatus(s string) TripStatus {
	switch TripStatus(s) {
	case TripStatusPlanning, TripStatusConfirmed, TripStatusOngoing,
		TripStatusCompleted, TripStatusCancelled:
		return TripStatus(s)
	default:
		return TripStatusPlanning
	}
}

// Trip is one trip's occurrence for calendar display.
//
// StartDate and EndDate are calendar dates (the time-of-day is ignored) and
// the range is inclusive on both ends. The calendar never mutates a Trip;
// it only indexes and filters the list it is given.
type Trip struct {
	ID       string `json:"trip_id"`
	SourceID string `json:"source_id,omitempty"`
	Title    string `json:"title,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	ConversationAvatar string `json:"conversation_avatar,omitempty"`
	ConversationName   string `json:"conversation_name,omitempty"`

	Status TripStatus `json:"status"`

	// ScheduleDate is an activity date inside the trip; SchedulesOnDate is
	// how many activities fall on it. Zero ScheduleDate means no activities.
	ScheduleDate    time.Time `json:"schedule_date,omitzero"`
	SchedulesOnDate int       `json:"schedules_on_date"`
}

// DisplayName returns the conversation name or the unnamed-group label.
func (t Trip) DisplayName() string {
	if t.ConversationName == "" {
		return DefaultGroupName
	}
	return t.ConversationName
}

// DisplayAvatar returns the conversation avatar or placeholder.
func (t Trip) DisplayAvatar(placeholder string) string {
	if t.ConversationAvatar == "" {
		return placeholder
	}
	return t.ConversationAvatar
}

// CalendarDay is a single grid cell date. It is recomputed from the month
// cursor on every render and never persisted.
type CalendarDay struct {
	Date           time.Time `json:"date"`
	Key            string    `json:"key"`
	Day            int       `json:"day"`
	IsCurrentMonth bool      `json:"is_current_month"`
	IsToday        bool      `json:"is_today"`
}
