// Package coverage restricts the distribution tier's candidate pool to the
// service areas of depot-tier facilities and records which depot supplies
// each distribution point.
package coverage

import (
	"sort"

	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/geo"
	"github.com/foodshed/siteplan/internal/model"
)

// FilterByDepots returns the cells within service radius of at least one
// depot. When no depots exist the full pool is returned unfiltered
// (constrained=false): degenerating to zero output because the optional
// dependency is absent would be worse than dropping the constraint.
func FilterByDepots(depots []model.Facility, cells []model.Cell) (filtered []model.Cell, constrained bool) {
	if len(depots) == 0 {
		zap.L().Info("coverage: no depot facilities, distribution tier unconstrained")
		return cells, false
	}

	for _, c := range cells {
		for _, d := range depots {
			if geo.HaversineMiles(c.Lat, c.Lon, d.Lat, d.Lon) <= d.ServiceRadius {
				filtered = append(filtered, c)
				break
			}
		}
	}

	if len(filtered) == 0 {
		zap.L().Warn("coverage: no cells within any depot radius, falling back to full pool",
			zap.Int("depots", len(depots)),
			zap.Int("cells", len(cells)),
		)
		return cells, false
	}

	return filtered, true
}

// AssignServed links each distribution point to the depot that supplies
// it, appending the point's id to that depot's ServedFacilityIDs. When a
// point sits inside several depot radii, the depot with the higher
// expected impact wins: the linkage expresses budget-tier dependency, not
// nearest-hub routing. Ties break on ascending depot id.
func AssignServed(depots []model.Facility, points []model.Facility) []model.Facility {
	if len(depots) == 0 || len(points) == 0 {
		return depots
	}

	out := make([]model.Facility, len(depots))
	copy(out, depots)

	for _, p := range points {
		best := -1
		for i, d := range out {
			if geo.HaversineMiles(p.Lat, p.Lon, d.Lat, d.Lon) > d.ServiceRadius {
				continue
			}
			if best == -1 ||
				d.ExpectedImpact > out[best].ExpectedImpact ||
				(d.ExpectedImpact == out[best].ExpectedImpact && d.ID < out[best].ID) {
				best = i
			}
		}
		if best >= 0 {
			out[best].ServedFacilityIDs = append(out[best].ServedFacilityIDs, p.ID)
		}
	}

	for i := range out {
		sort.Strings(out[i].ServedFacilityIDs)
	}
	return out
}
