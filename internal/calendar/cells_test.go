package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripcal/internal/model"
)

func findCell(t *testing.T, cells []Cell, key string) Cell {
	t.Helper()
	for _, c := range cells {
		if c.Key == key {
			return c
		}
	}
	t.Fatalf("cell %s not found", key)
	return Cell{}
}

func TestBuildCellsTreatments(t *testing.T) {
	grid := GenerateGrid(date(2025, 11, 1), date(2025, 11, 1))
	trips := []model.Trip{
		{ID: "long", StartDate: date(2025, 11, 3), EndDate: date(2025, 11, 12)},
		{ID: "inner", StartDate: date(2025, 11, 7), EndDate: date(2025, 11, 8)},
	}

	cells := BuildCells(grid, trips, nil)
	require.Len(t, cells, GridSize)

	start := findCell(t, cells, "2025-11-03")
	assert.Equal(t, TreatmentStart, start.Treatment)
	require.Len(t, start.StartTrips, 1)
	assert.Equal(t, "long", start.StartTrips[0].ID)

	inRange := findCell(t, cells, "2025-11-04")
	assert.Equal(t, TreatmentRange, inRange.Treatment)
	require.NotNil(t, inRange.RangeTrip)
	assert.Equal(t, "long", inRange.RangeTrip.ID)

	// inner starts inside long's range: the avatar wins
	overlap := findCell(t, cells, "2025-11-07")
	assert.Equal(t, TreatmentStart, overlap.Treatment)
	assert.Nil(t, overlap.RangeTrip)

	assert.Equal(t, TreatmentRange, findCell(t, cells, "2025-11-12").Treatment)
	assert.Equal(t, TreatmentNone, findCell(t, cells, "2025-11-13").Treatment)
}

func TestBuildCellsActivityBadges(t *testing.T) {
	grid := GenerateGrid(date(2025, 11, 1), date(2025, 11, 1))
	trips := []model.Trip{
		{ID: "a", StartDate: date(2025, 11, 3), EndDate: date(2025, 11, 6), ScheduleDate: date(2025, 11, 4), SchedulesOnDate: 3},
		{ID: "b", StartDate: date(2025, 11, 4), EndDate: date(2025, 11, 5), ScheduleDate: date(2025, 11, 4), SchedulesOnDate: 2},
		{ID: "c", StartDate: date(2025, 11, 20), EndDate: date(2025, 11, 21)},
	}

	cells := BuildCells(grid, trips, nil)

	assert.Equal(t, 5, findCell(t, cells, "2025-11-04").Activities)
	assert.Zero(t, findCell(t, cells, "2025-11-20").Activities)
}

func TestBuildCellsLegacyEventsOnlyWithoutTrips(t *testing.T) {
	grid := GenerateGrid(date(2025, 11, 1), date(2025, 11, 1))
	events := map[string]bool{"2025-11-15": true, "2025-11-16": false}

	cells := BuildCells(grid, nil, events)
	assert.Equal(t, TreatmentEvent, findCell(t, cells, "2025-11-15").Treatment)
	assert.Equal(t, TreatmentNone, findCell(t, cells, "2025-11-16").Treatment)

	trips := []model.Trip{{ID: "x", StartDate: date(2025, 11, 1), EndDate: date(2025, 11, 2)}}
	cells = BuildCells(grid, trips, events)
	assert.Equal(t, TreatmentNone, findCell(t, cells, "2025-11-15").Treatment)
}

func TestBuildCellsEmptyInputs(t *testing.T) {
	grid := GenerateGrid(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), time.Now())

	cells := BuildCells(grid, nil, nil)

	require.Len(t, cells, GridSize)
	for _, c := range cells {
		assert.Equal(t, TreatmentNone, c.Treatment)
	}
}
