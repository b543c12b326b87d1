package calendar

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"tripcal/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMatchRangeExcludesStartIncludesEnd(t *testing.T) {
	trips := []model.Trip{{ID: "dalat", StartDate: date(2025, 11, 10), EndDate: date(2025, 11, 14)}}

	_, ok := MatchRange(date(2025, 11, 10), trips)
	assert.False(t, ok, "start date is never in range")

	for d := 11; d <= 14; d++ {
		got, ok := MatchRange(date(2025, 11, d), trips)
		assert.True(t, ok, "2025-11-%02d", d)
		assert.Equal(t, "dalat", got.ID)
	}

	_, ok = MatchRange(date(2025, 11, 15), trips)
	assert.False(t, ok)
}

func TestMatchRangeIgnoresTimeOfDay(t *testing.T) {
	trips := []model.Trip{{
		ID:        "hanoi",
		StartDate: time.Date(2025, 11, 10, 18, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 11, 12, 6, 0, 0, 0, time.UTC),
	}}

	_, ok := MatchRange(time.Date(2025, 11, 10, 23, 59, 0, 0, time.UTC), trips)
	assert.False(t, ok)
	_, ok = MatchRange(time.Date(2025, 11, 12, 22, 0, 0, 0, time.UTC), trips)
	assert.True(t, ok)
}

func TestMatchRangeFirstMatchWins(t *testing.T) {
	trips := []model.Trip{
		{ID: "first", StartDate: date(2025, 11, 1), EndDate: date(2025, 11, 20)},
		{ID: "second", StartDate: date(2025, 11, 9), EndDate: date(2025, 11, 12)},
	}

	got, ok := MatchRange(date(2025, 11, 10), trips)
	assert.True(t, ok)
	assert.Equal(t, "first", got.ID)
}

func TestMatchRangeMalformedTripNeverMatches(t *testing.T) {
	trips := []model.Trip{{ID: "bad", StartDate: date(2025, 11, 20), EndDate: date(2025, 11, 10)}}

	for d := 1; d <= 30; d++ {
		_, ok := MatchRange(date(2025, 11, d), trips)
		assert.False(t, ok)
	}
}

func TestIndexByStartDateKeepsInputOrder(t *testing.T) {
	trips := []model.Trip{
		{ID: "1", StartDate: date(2025, 11, 5)},
		{ID: "2", StartDate: date(2025, 11, 5)},
		{ID: "3", StartDate: date(2025, 11, 6)},
	}

	got := IndexByStartDate(trips)

	want := map[string][]string{
		"2025-11-05": {"1", "2"},
		"2025-11-06": {"3"},
	}
	if diff := cmp.Diff(want, tripIDs(got)); diff != "" {
		t.Fatalf("index mismatch (-want +got):\n%s", diff)
	}
}

func TestIndexByStartDateKeepsDuplicates(t *testing.T) {
	trip := model.Trip{ID: "dup", StartDate: date(2025, 11, 5)}

	got := IndexByStartDate([]model.Trip{trip, trip})

	assert.Len(t, got["2025-11-05"], 2)
}

func TestIndexByStartDateUsesTripLocalDate(t *testing.T) {
	hcm := time.FixedZone("ICT", 7*60*60)
	// 00:30 on the 6th in UTC+7 is still the 5th in UTC
	trip := model.Trip{ID: "local", StartDate: time.Date(2025, 11, 6, 0, 30, 0, 0, hcm)}

	got := IndexByStartDate([]model.Trip{trip})

	assert.Contains(t, got, "2025-11-06")
	assert.NotContains(t, got, "2025-11-05")
}

func TestOverlaps(t *testing.T) {
	trip := model.Trip{StartDate: date(2025, 10, 28), EndDate: date(2025, 11, 2)}

	assert.True(t, Overlaps(trip, date(2025, 11, 1), date(2025, 11, 30)))
	assert.True(t, Overlaps(trip, date(2025, 11, 2), date(2025, 11, 30)))
	assert.False(t, Overlaps(trip, date(2025, 11, 3), date(2025, 11, 30)))
	assert.False(t, Overlaps(trip, date(2025, 9, 1), date(2025, 10, 27)))
}

func tripIDs(index map[string][]model.Trip) map[string][]string {
	out := make(map[string][]string, len(index))
	for key, trips := range index {
		for _, trip := range trips {
			out[key] = append(out[key], trip.ID)
		}
	}
	return out
}
