package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/siteplan/internal/model"
)

func TestDepotCandidatesEmpty(t *testing.T) {
	assert.Empty(t, DepotCandidates(nil, 2))
	assert.Empty(t, DepotCandidates([]model.Cell{{ID: "a"}}, 0))
}

func TestDepotCandidatesOnePerRegion(t *testing.T) {
	// Two clusters in opposite quadrants.
	cells := []model.Cell{
		{ID: "sw1", Lat: 29.0, Lon: -96.0, NeedIndex: 5000},
		{ID: "sw2", Lat: 29.1, Lon: -95.9, NeedIndex: 100},
		{ID: "sw3", Lat: 29.05, Lon: -95.95, NeedIndex: 200},
		{ID: "ne1", Lat: 30.8, Lon: -94.2, NeedIndex: 400},
		{ID: "ne2", Lat: 30.9, Lon: -94.1, NeedIndex: 300},
	}

	reps := DepotCandidates(cells, 4)
	require.Len(t, reps, 2)

	// Highest aggregate need region comes first.
	swIDs := map[string]bool{"sw1": true, "sw2": true, "sw3": true}
	assert.True(t, swIDs[reps[0].ID])

	// The representative avoids the region's highest-need cell so a depot
	// does not consume a prime distribution-tier anchor.
	assert.NotEqual(t, "sw1", reps[0].ID)
}

func TestDepotCandidatesFinerLatticeForManyDepots(t *testing.T) {
	var cells []model.Cell
	for i := 0; i < 9; i++ {
		cells = append(cells, model.Cell{
			ID:        string(rune('a' + i)),
			Lat:       29.0 + float64(i%3),
			Lon:       -96.0 + float64(i/3),
			NeedIndex: float64(100 * (i + 1)),
		})
	}

	reps := DepotCandidates(cells, 9)
	assert.Len(t, reps, 9)
}

func TestDepotCandidatesDeterministic(t *testing.T) {
	cells := []model.Cell{
		{ID: "b", Lat: 29.0, Lon: -96.0, NeedIndex: 100},
		{ID: "a", Lat: 29.0, Lon: -96.0, NeedIndex: 100},
		{ID: "c", Lat: 30.9, Lon: -94.1, NeedIndex: 100},
	}

	first := DepotCandidates(cells, 4)
	second := DepotCandidates(cells, 4)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}
