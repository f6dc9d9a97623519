// Package allocator implements the shared greedy site-selection engine.
// One engine serves both tiers; tier differences (service radius, cost
// horizon, declustering) are expressed as parameters, not code paths.
package allocator

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/geo"
	"github.com/foodshed/siteplan/internal/model"
)

// Params configures one allocator run.
type Params struct {
	Tier                model.Tier
	Budget              float64
	MinDistanceMiles    float64
	MaxFacilities       int
	ServiceRadiusMiles  float64
	BudgetFloorFraction float64
	PrimaryMonths       int
	FallbackMonths      int
	Decluster           *Decluster // nil disables declustering
}

// SelectionState is the mutable bookkeeping of a single run. Selection is
// inherently sequential: every decision depends on the state left by the
// previous one.
type SelectionState struct {
	RemainingBudget float64
	OriginalBudget  float64
	UsedCellIDs     map[string]bool
	ZoneOccupancy   map[int]int
	Selected        []model.Facility
}

// Result holds the selected facilities and selection statistics.
type Result struct {
	Facilities      []model.Facility
	Rounds          int
	Candidates      int
	BudgetRemaining float64
}

// Run selects facilities greedily from the candidate pool. Candidates are
// sorted by efficiency score descending, ties broken by ascending cell id,
// then consumed over multiple rounds: a candidate rejected for distance or
// zone-saturation reasons in one round may become eligible in a later one
// as the occupancy and budget state evolves. The run ends when a round
// adds nothing, the budget falls below the floor, or the facility cap is
// reached. An expired context stops the run between rounds, never mid-round,
// so the state is always left valid.
func Run(ctx context.Context, p Params, candidates []model.ScoredCandidate) (Result, error) {
	if math.IsNaN(p.Budget) || math.IsInf(p.Budget, 0) {
		return Result{}, eris.Wrap(model.ErrInvariantViolated, "allocator: budget is not a finite number")
	}
	if p.PrimaryMonths <= 0 {
		return Result{}, eris.Wrap(model.ErrInvariantViolated, "allocator: primary amortization horizon must be positive")
	}

	if len(candidates) == 0 || p.Budget <= 0 || p.MaxFacilities <= 0 {
		return Result{BudgetRemaining: math.Max(p.Budget, 0)}, nil
	}

	sorted := make([]model.ScoredCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EfficiencyScore != sorted[j].EfficiencyScore {
			return sorted[i].EfficiencyScore > sorted[j].EfficiencyScore
		}
		return sorted[i].Cell.ID < sorted[j].Cell.ID
	})

	state := &SelectionState{
		RemainingBudget: p.Budget,
		OriginalBudget:  p.Budget,
		UsedCellIDs:     make(map[string]bool),
		ZoneOccupancy:   make(map[int]int),
	}

	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("allocator: deadline reached, stopping between rounds",
				zap.String("tier", string(p.Tier)),
				zap.Int("rounds", rounds),
				zap.Int("selected", len(state.Selected)),
			)
			break
		}

		added := runRound(p, sorted, state)
		rounds++

		if added == 0 {
			break
		}
		if len(state.Selected) >= p.MaxFacilities {
			break
		}
		if state.RemainingBudget < p.BudgetFloorFraction*state.OriginalBudget {
			break
		}
	}

	zap.L().Debug("allocator: run complete",
		zap.String("tier", string(p.Tier)),
		zap.Int("selected", len(state.Selected)),
		zap.Int("rounds", rounds),
		zap.Float64("budget_remaining", state.RemainingBudget),
	)

	return Result{
		Facilities:      state.Selected,
		Rounds:          rounds,
		Candidates:      len(sorted),
		BudgetRemaining: state.RemainingBudget,
	}, nil
}

// runRound makes one pass over the sorted candidates and returns how many
// facilities it added.
func runRound(p Params, sorted []model.ScoredCandidate, state *SelectionState) int {
	added := 0
	for _, cand := range sorted {
		if len(state.Selected) >= p.MaxFacilities {
			break
		}
		if state.UsedCellIDs[cand.Cell.ID] {
			continue
		}

		zone := -1
		if p.Decluster != nil {
			zone = p.Decluster.ZoneOf(cand.Cell.Lat, cand.Cell.Lon)
			if !p.Decluster.Allows(zone, state.ZoneOccupancy, len(state.Selected)) {
				continue
			}
		}

		if tooClose(cand.Cell, state.Selected, p.MinDistanceMiles) {
			continue
		}

		cost, months, ok := Afford(
			cand.SetupCost, cand.RecurringCost,
			state.RemainingBudget, state.OriginalBudget,
			p.PrimaryMonths, p.FallbackMonths, p.BudgetFloorFraction,
		)
		if !ok {
			continue
		}

		state.Selected = append(state.Selected, model.Facility{
			ID:                 cand.Cell.ID,
			Lat:                cand.Cell.Lat,
			Lon:                cand.Cell.Lon,
			Tier:               p.Tier,
			ServiceRadius:      p.ServiceRadiusMiles,
			SetupCost:          cand.SetupCost,
			RecurringCost:      cand.RecurringCost,
			EfficiencyScore:    cand.EfficiencyScore,
			ExpectedImpact:     int(cand.ExpectedImpact),
			CommittedCost:      cost,
			AmortizationMonths: months,
		})
		state.RemainingBudget -= cost
		state.UsedCellIDs[cand.Cell.ID] = true
		if zone >= 0 {
			state.ZoneOccupancy[zone]++
		}
		added++
	}
	return added
}

// tooClose reports whether the cell is within minDistance of any already
// selected facility. Distances are geodesic; coordinates are lat/lon.
func tooClose(c model.Cell, selected []model.Facility, minDistance float64) bool {
	if minDistance <= 0 {
		return false
	}
	for _, f := range selected {
		if geo.HaversineMiles(c.Lat, c.Lon, f.Lat, f.Lon) < minDistance {
			return true
		}
	}
	return false
}

// Afford computes the cost a facility would commit against the remaining
// budget, trying the primary amortization horizon first. When the primary
// horizon exceeds the remaining budget but the remaining budget still
// exceeds twice the setup cost and the budget floor, the shorter fallback
// horizon is tried, so a run does not stop early purely because of a
// conservative horizon. Returns ok=false when neither horizon fits.
func Afford(setup, recurring, remaining, original float64, primaryMonths, fallbackMonths int, floorFraction float64) (cost float64, months int, ok bool) {
	primary := setup + float64(primaryMonths)*recurring
	if primary <= remaining {
		return primary, primaryMonths, true
	}

	if fallbackMonths > 0 && fallbackMonths < primaryMonths &&
		remaining > 2*setup && remaining > floorFraction*original {
		fallback := setup + float64(fallbackMonths)*recurring
		if fallback <= remaining {
			return fallback, fallbackMonths, true
		}
	}

	return 0, 0, false
}
