package allocator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
)

func declusterConfig() config.DeclusterConfig {
	return config.DeclusterConfig{
		GridSize:              6,
		CapacityOneBelow:      12,
		CapacityTwoBelow:      20,
		NeighborOccupiedRatio: 0.7,
	}
}

func spreadCells(n int) []model.Cell {
	var cells []model.Cell
	for i := 0; i < n; i++ {
		cells = append(cells, model.Cell{
			ID:  string(rune('a' + i%26)),
			Lat: 29.0 + float64(i%6)*0.5,
			Lon: -96.0 + float64(i/6)*0.5,
		})
	}
	return cells
}

func TestNewDeclusterNilWithoutCells(t *testing.T) {
	assert.Nil(t, NewDecluster(declusterConfig(), nil))
}

func TestDeclusterCapacitySchedule(t *testing.T) {
	d := NewDecluster(declusterConfig(), spreadCells(36))
	require.NotNil(t, d)

	assert.Equal(t, 1, d.capacityAt(0))
	assert.Equal(t, 1, d.capacityAt(11))
	assert.Equal(t, 2, d.capacityAt(12))
	assert.Equal(t, 2, d.capacityAt(19))
	assert.Equal(t, 3, d.capacityAt(20))
	assert.Equal(t, 3, d.capacityAt(100))
}

func TestDeclusterBlocksSaturatedZone(t *testing.T) {
	d := NewDecluster(declusterConfig(), spreadCells(36))
	require.NotNil(t, d)

	occupancy := map[int]int{}
	zone := d.ZoneOf(29.0, -96.0)

	assert.True(t, d.Allows(zone, occupancy, 0))
	occupancy[zone] = 1
	// Zone full and neighbors empty: blocked.
	assert.False(t, d.Allows(zone, occupancy, 1))
}

func TestDeclusterRelaxesWhenNeighborsOccupied(t *testing.T) {
	d := NewDecluster(declusterConfig(), spreadCells(36))
	require.NotNil(t, d)

	zone := d.ZoneOf(29.75, -95.25) // interior zone with 8 neighbors
	occupancy := map[int]int{zone: 1}
	for _, nb := range d.grid.Neighbors(zone) {
		occupancy[nb] = 1
	}

	// Saturated zone, but the whole neighborhood is occupied: allowed to
	// exceed capacity by exactly one.
	assert.True(t, d.Allows(zone, occupancy, 5))
	occupancy[zone] = 2
	assert.False(t, d.Allows(zone, occupancy, 5))
}

func TestRunDeclusterSpreadsEarlySelections(t *testing.T) {
	// Two dense clusters of high-score candidates far enough apart to pass
	// the distance check but in the same grid zone. With declustering on,
	// the second pick must come from the other cluster.
	var cands []model.ScoredCandidate
	cands = append(cands,
		cand("a1", 29.00, -96.00, 10, 100000, 10000, 300),
		cand("a2", 29.05, -96.00, 9, 100000, 10000, 300),
		cand("b1", 31.50, -93.50, 5, 100000, 10000, 300),
	)

	cells := make([]model.Cell, 0, len(cands))
	for _, c := range cands {
		cells = append(cells, c.Cell)
	}

	p := distParams(2_000_000)
	p.Decluster = NewDecluster(declusterConfig(), cells)
	require.NotNil(t, p.Decluster)

	res, err := Run(context.Background(), p, cands)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Facilities), 2)
	assert.Equal(t, "a1", res.Facilities[0].ID)
	assert.Equal(t, "b1", res.Facilities[1].ID)
}
