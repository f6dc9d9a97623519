package allocator

import (
	"math"
	"sort"

	"github.com/foodshed/siteplan/internal/geo"
	"github.com/foodshed/siteplan/internal/model"
)

// DepotCandidates picks one representative anchor cell per high-need
// sub-region for the depot tier's coarse placement. The region is split
// into quadrants (or a finer lattice when more depots are requested), and
// within each sub-region the representative is the cell closest to the
// need-weighted centroid among cells with comparatively low individual
// need, so a depot does not consume a prime distribution-tier site.
func DepotCandidates(cells []model.Cell, maxDepots int) []model.Cell {
	if len(cells) == 0 || maxDepots <= 0 {
		return nil
	}

	box := geo.NewBBox()
	for _, c := range cells {
		box.Extend(c.Lat, c.Lon)
	}

	side := 2
	if maxDepots > 4 {
		side = int(math.Ceil(math.Sqrt(float64(maxDepots))))
	}
	grid := geo.NewGrid(box, side)

	groups := make(map[int][]model.Cell)
	for _, c := range cells {
		key := grid.ZoneKey(c.Lat, c.Lon)
		groups[key] = append(groups[key], c)
	}

	type region struct {
		key       int
		need      float64
		candidate model.Cell
	}

	regions := make([]region, 0, len(groups))
	for key, group := range groups {
		totalNeed := 0.0
		for _, c := range group {
			totalNeed += c.NeedIndex
		}
		regions = append(regions, region{
			key:       key,
			need:      totalNeed,
			candidate: representative(group),
		})
	}

	// Highest-need sub-regions first; key breaks ties for determinism.
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].need != regions[j].need {
			return regions[i].need > regions[j].need
		}
		return regions[i].key < regions[j].key
	})

	out := make([]model.Cell, 0, len(regions))
	for _, r := range regions {
		out = append(out, r.candidate)
	}
	return out
}

// representative picks the anchor cell for one sub-region: nearest to the
// need-weighted centroid among below-median-need cells.
func representative(group []model.Cell) model.Cell {
	if len(group) == 1 {
		return group[0]
	}

	var latSum, lonSum, needSum float64
	for _, c := range group {
		w := c.NeedIndex
		if w <= 0 {
			w = 1
		}
		latSum += c.Lat * w
		lonSum += c.Lon * w
		needSum += w
	}
	cLat, cLon := latSum/needSum, lonSum/needSum

	pool := belowMedianNeed(group)

	best := pool[0]
	bestDist := geo.HaversineMiles(best.Lat, best.Lon, cLat, cLon)
	for _, c := range pool[1:] {
		d := geo.HaversineMiles(c.Lat, c.Lon, cLat, cLon)
		if d < bestDist || (d == bestDist && c.ID < best.ID) {
			best, bestDist = c, d
		}
	}
	return best
}

func belowMedianNeed(group []model.Cell) []model.Cell {
	if len(group) < 3 {
		return group
	}
	sorted := make([]model.Cell, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].NeedIndex != sorted[j].NeedIndex {
			return sorted[i].NeedIndex < sorted[j].NeedIndex
		}
		return sorted[i].ID < sorted[j].ID
	})
	half := sorted[:(len(sorted)+1)/2]
	return half
}
