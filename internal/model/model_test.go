package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTripStatus(t *testing.T) {
	assert.Equal(t, TripStatusConfirmed, ParseTripStatus("CONFIRMED"))
	assert.Equal(t, TripStatusCancelled, ParseTripStatus("CANCELLED"))
	assert.Equal(t, TripStatusPlanning, ParseTripStatus(""))
	assert.Equal(t, TripStatusPlanning, ParseTripStatus("confirmed"))
}

func TestTripDisplayDefaults(t *testing.T) {
	trip := Trip{ID: "t1"}
	assert.Equal(t, DefaultGroupName, trip.DisplayName())
	assert.Equal(t, "/static/group.png", trip.DisplayAvatar("/static/group.png"))

	trip.ConversationName = "Đà Lạt 2025"
	trip.ConversationAvatar = "https://cdn.example.com/a.png"
	assert.Equal(t, "Đà Lạt 2025", trip.DisplayName())
	assert.Equal(t, "https://cdn.example.com/a.png", trip.DisplayAvatar("/static/group.png"))
}
