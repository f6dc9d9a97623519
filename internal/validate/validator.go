// Package validate re-checks proposed facilities independently of the
// allocator's bookkeeping, so composition bugs (facilities individually
// affordable but jointly over budget) cannot reach the final result.
package validate

import (
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/allocator"
	"github.com/foodshed/siteplan/internal/geo"
	"github.com/foodshed/siteplan/internal/model"
)

// TierAmortization holds the amortization horizons used when re-deriving a
// tier's facility costs. These mirror the horizons the allocator ran with.
type TierAmortization struct {
	PrimaryMonths  int
	FallbackMonths int
}

// Params configures a validation pass.
type Params struct {
	TotalBudget   float64
	FloorFraction float64

	// DepotBudgetFraction splits the budget into per-tier shares: depots
	// validate against TotalBudget*fraction, distribution points against
	// the remainder, so neither tier's committed sum can exceed its
	// allocation. Outside (0,1) both tiers draw from one combined pool.
	DepotBudgetFraction float64

	Depot        TierAmortization
	Distribution TierAmortization
}

// Outcome is the validation result. Facilities preserves tier order
// (depots first) and within-tier selection order.
type Outcome struct {
	Facilities         []model.Facility
	AdjustmentsMade    int
	BudgetUsed         float64
	TotalImpact        int
	CoveragePercentage float64
	PopulationCoverage float64
}

// Run validates every facility against two independent tests: it must
// serve at least one cell within its service radius, and its re-amortized
// cost must fit in its tier's remaining share when costs are summed depots
// first, then distribution points. Re-amortization runs against the tier
// share, so a facility the allocator admitted on the fallback horizon falls
// back again here rather than being re-charged the primary horizon past its
// tier's allocation. Facilities failing either test are dropped. Running
// the pass again on its own output changes nothing.
func Run(p Params, facilities []model.Facility, cells []model.Cell) Outcome {
	ordered := make([]model.Facility, 0, len(facilities))
	for _, f := range facilities {
		if f.Tier == model.TierDepot {
			ordered = append(ordered, f)
		}
	}
	for _, f := range facilities {
		if f.Tier != model.TierDepot {
			ordered = append(ordered, f)
		}
	}

	depotShare, distShare := p.TotalBudget, p.TotalBudget
	split := p.DepotBudgetFraction > 0 && p.DepotBudgetFraction < 1
	if split {
		depotShare = p.TotalBudget * p.DepotBudgetFraction
		distShare = p.TotalBudget - depotShare
	}

	out := Outcome{}
	covered := make(map[string]bool)
	depotUsed, distUsed := 0.0, 0.0

	for _, f := range ordered {
		served := servedCells(f, cells)
		if len(served) == 0 {
			out.AdjustmentsMade++
			zap.L().Debug("validate: facility serves no cells, dropping",
				zap.String("facility", f.ID),
				zap.String("tier", string(f.Tier)),
			)
			continue
		}

		amort, share, used := p.Distribution, distShare, distUsed
		if f.Tier == model.TierDepot {
			amort, share, used = p.Depot, depotShare, depotUsed
		}
		if !split {
			used = depotUsed + distUsed
		}
		cost, months, ok := allocator.Afford(
			f.SetupCost, f.RecurringCost,
			share-used, share,
			amort.PrimaryMonths, amort.FallbackMonths, p.FloorFraction,
		)
		if !ok {
			out.AdjustmentsMade++
			zap.L().Debug("validate: facility does not fit tier share, dropping",
				zap.String("facility", f.ID),
				zap.String("tier", string(f.Tier)),
				zap.Float64("share_remaining", share-used),
			)
			continue
		}

		f.CommittedCost = cost
		f.AmortizationMonths = months
		if f.Tier == model.TierDepot {
			depotUsed += cost
		} else {
			distUsed += cost
		}
		out.Facilities = append(out.Facilities, f)
		out.TotalImpact += f.ExpectedImpact
		for _, id := range served {
			covered[id] = true
		}
	}

	out.Facilities = pruneServedIDs(out.Facilities)
	out.BudgetUsed = depotUsed + distUsed

	if len(cells) > 0 {
		out.CoveragePercentage = 100 * float64(len(covered)) / float64(len(cells))

		totalPop, coveredPop := 0, 0
		for _, c := range cells {
			totalPop += c.Population
			if covered[c.ID] {
				coveredPop += c.Population
			}
		}
		if totalPop > 0 {
			out.PopulationCoverage = 100 * float64(coveredPop) / float64(totalPop)
		}
	}

	return out
}

// pruneServedIDs rewrites depot serving lists to reference only
// distribution points that survived the pass.
func pruneServedIDs(facilities []model.Facility) []model.Facility {
	surviving := make(map[string]bool, len(facilities))
	for _, f := range facilities {
		if f.Tier != model.TierDepot {
			surviving[f.ID] = true
		}
	}
	for i, f := range facilities {
		if f.Tier != model.TierDepot || len(f.ServedFacilityIDs) == 0 {
			continue
		}
		var kept []string
		for _, id := range f.ServedFacilityIDs {
			if surviving[id] {
				kept = append(kept, id)
			}
		}
		facilities[i].ServedFacilityIDs = kept
	}
	return facilities
}

// servedCells returns the ids of cells within the facility's service radius.
func servedCells(f model.Facility, cells []model.Cell) []string {
	var out []string
	for _, c := range cells {
		if geo.HaversineMiles(f.Lat, f.Lon, c.Lat, c.Lon) <= f.ServiceRadius {
			out = append(out, c.ID)
		}
	}
	return out
}
