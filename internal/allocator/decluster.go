package allocator

import (
	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/geo"
	"github.com/foodshed/siteplan/internal/model"
)

// Decluster is the grid-based occupancy policy that keeps early selections
// spread out. Zone capacity grows with the total number of facilities
// placed, so later selections may cluster where need still concentrates.
type Decluster struct {
	grid          geo.Grid
	capOneBelow   int
	capTwoBelow   int
	neighborRatio float64
}

// NewDecluster builds the policy over the bounding box of the candidate
// cells. Returns nil when there are no cells to bound.
func NewDecluster(cfg config.DeclusterConfig, cells []model.Cell) *Decluster {
	box := geo.NewBBox()
	for _, c := range cells {
		box.Extend(c.Lat, c.Lon)
	}
	if box.Empty() {
		return nil
	}

	n := cfg.GridSize
	if n < 1 {
		n = 6
	}
	return &Decluster{
		grid:          geo.NewGrid(box, n),
		capOneBelow:   cfg.CapacityOneBelow,
		capTwoBelow:   cfg.CapacityTwoBelow,
		neighborRatio: cfg.NeighborOccupiedRatio,
	}
}

// ZoneOf maps a point to its grid zone key.
func (d *Decluster) ZoneOf(lat, lon float64) int {
	return d.grid.ZoneKey(lat, lon)
}

// Allows reports whether a candidate in the given zone may be selected.
// A zone at capacity is still allowed to exceed it by one when most of its
// neighboring zones are already occupied, i.e. distribution has plausibly
// plateaued and the remaining need genuinely concentrates there.
func (d *Decluster) Allows(zone int, occupancy map[int]int, totalSelected int) bool {
	capacity := d.capacityAt(totalSelected)
	if occupancy[zone] < capacity {
		return true
	}

	neighbors := d.grid.Neighbors(zone)
	if len(neighbors) == 0 {
		return false
	}
	occupied := 0
	for _, nb := range neighbors {
		if occupancy[nb] > 0 {
			occupied++
		}
	}
	if float64(occupied) >= d.neighborRatio*float64(len(neighbors)) {
		return occupancy[zone] < capacity+1
	}
	return false
}

// capacityAt returns the per-zone capacity for the current selection count.
func (d *Decluster) capacityAt(totalSelected int) int {
	switch {
	case totalSelected < d.capOneBelow:
		return 1
	case totalSelected < d.capTwoBelow:
		return 2
	default:
		return 3
	}
}
