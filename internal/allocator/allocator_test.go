package allocator

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/siteplan/internal/geo"
	"github.com/foodshed/siteplan/internal/model"
)

func cand(id string, lat, lon, score, setup, recurring, impact float64) model.ScoredCandidate {
	return model.ScoredCandidate{
		Cell:            model.Cell{ID: id, Lat: lat, Lon: lon, Population: 1000, NeedIndex: impact * 2},
		EfficiencyScore: score,
		SetupCost:       setup,
		RecurringCost:   recurring,
		ExpectedImpact:  impact,
	}
}

func distParams(budget float64) Params {
	return Params{
		Tier:                model.TierDistribution,
		Budget:              budget,
		MinDistanceMiles:    0.5,
		MaxFacilities:       100,
		ServiceRadiusMiles:  1.5,
		BudgetFloorFraction: 0.10,
		PrimaryMonths:       12,
		FallbackMonths:      6,
	}
}

func TestRunEmptyPool(t *testing.T) {
	res, err := Run(context.Background(), distParams(1_000_000), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Facilities)
	assert.InDelta(t, 1_000_000, res.BudgetRemaining, 0.001)
}

func TestRunZeroBudget(t *testing.T) {
	res, err := Run(context.Background(), distParams(0), []model.ScoredCandidate{
		cand("a", 29.7, -95.3, 1.0, 100000, 10000, 300),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Facilities)
}

func TestRunNonFiniteBudgetIsInvariantViolation(t *testing.T) {
	p := distParams(math.NaN())
	_, err := Run(context.Background(), p, []model.ScoredCandidate{
		cand("a", 29.7, -95.3, 1.0, 100000, 10000, 300),
	})
	assert.ErrorIs(t, err, model.ErrInvariantViolated)
}

func TestRunBudgetBelowCheapestCandidate(t *testing.T) {
	res, err := Run(context.Background(), distParams(50_000), []model.ScoredCandidate{
		cand("a", 29.7, -95.3, 1.0, 100000, 10000, 300),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Facilities)
	assert.InDelta(t, 50_000, res.BudgetRemaining, 0.001)
}

func TestRunMinDistanceEnforced(t *testing.T) {
	// Three candidates, all within 0.5 miles of each other: exactly one wins.
	cands := []model.ScoredCandidate{
		cand("a", 29.7000, -95.3000, 3.0, 100000, 10000, 300),
		cand("b", 29.7010, -95.3010, 2.0, 100000, 10000, 300),
		cand("c", 29.7020, -95.3020, 1.0, 100000, 10000, 300),
	}

	res, err := Run(context.Background(), distParams(10_000_000), cands)
	require.NoError(t, err)
	require.Len(t, res.Facilities, 1)
	assert.Equal(t, "a", res.Facilities[0].ID)
}

func TestRunMinDistancePairwiseProperty(t *testing.T) {
	var cands []model.ScoredCandidate
	for i := 0; i < 30; i++ {
		cands = append(cands, cand(
			string(rune('a'+i)),
			29.5+float64(i)*0.004, // ~0.28 miles apart
			-95.3,
			float64(30-i),
			100000, 10000, 300,
		))
	}

	p := distParams(50_000_000)
	res, err := Run(context.Background(), p, cands)
	require.NoError(t, err)
	require.NotEmpty(t, res.Facilities)

	for i, f1 := range res.Facilities {
		for _, f2 := range res.Facilities[i+1:] {
			d := geo.HaversineMiles(f1.Lat, f1.Lon, f2.Lat, f2.Lon)
			assert.GreaterOrEqual(t, d, p.MinDistanceMiles,
				"facilities %s and %s too close", f1.ID, f2.ID)
		}
	}
}

func TestRunNeverOverspends(t *testing.T) {
	var cands []model.ScoredCandidate
	for i := 0; i < 20; i++ {
		cands = append(cands, cand(
			string(rune('a'+i)),
			29.0+float64(i)*0.1,
			-95.3,
			float64(20-i),
			150000, 15000, 500,
		))
	}

	budget := 1_000_000.0
	res, err := Run(context.Background(), distParams(budget), cands)
	require.NoError(t, err)

	total := 0.0
	for _, f := range res.Facilities {
		assert.Positive(t, f.CommittedCost)
		total += f.CommittedCost
	}
	assert.LessOrEqual(t, total, budget)
	assert.InDelta(t, budget-total, res.BudgetRemaining, 0.001)
}

func TestRunNoDuplicateAnchors(t *testing.T) {
	var cands []model.ScoredCandidate
	for i := 0; i < 10; i++ {
		cands = append(cands, cand(
			string(rune('a'+i)),
			29.0+float64(i)*0.2,
			-95.3,
			1.0, // identical scores: id tie-break orders them
			100000, 10000, 300,
		))
	}

	res, err := Run(context.Background(), distParams(50_000_000), cands)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, f := range res.Facilities {
		assert.False(t, seen[f.ID], "cell %s anchored twice", f.ID)
		seen[f.ID] = true
	}
}

func TestRunDeterministicTieBreak(t *testing.T) {
	cands := []model.ScoredCandidate{
		cand("b", 29.0, -95.0, 1.0, 100000, 10000, 300),
		cand("a", 30.0, -96.0, 1.0, 100000, 10000, 300),
	}

	p := distParams(250_000) // enough for exactly one
	res, err := Run(context.Background(), p, cands)
	require.NoError(t, err)
	require.Len(t, res.Facilities, 1)
	assert.Equal(t, "a", res.Facilities[0].ID)
}

func TestRunFacilityCap(t *testing.T) {
	var cands []model.ScoredCandidate
	for i := 0; i < 10; i++ {
		cands = append(cands, cand(
			string(rune('a'+i)),
			29.0+float64(i)*0.2,
			-95.3,
			float64(10-i),
			100000, 10000, 300,
		))
	}

	p := distParams(50_000_000)
	p.MaxFacilities = 3
	res, err := Run(context.Background(), p, cands)
	require.NoError(t, err)
	assert.Len(t, res.Facilities, 3)
}

func TestAffordPrimaryHorizon(t *testing.T) {
	cost, months, ok := Afford(100000, 10000, 500000, 1_000_000, 12, 6, 0.10)
	require.True(t, ok)
	assert.Equal(t, 12, months)
	assert.InDelta(t, 220000, cost, 0.001)
}

func TestAffordFallbackHorizon(t *testing.T) {
	// 12-month cost is 350k, over the 200k remaining; fallback 6-month cost
	// is exactly 200k and the remaining budget clears both guard rails.
	cost, months, ok := Afford(50000, 25000, 200000, 200000, 12, 6, 0.10)
	require.True(t, ok)
	assert.Equal(t, 6, months)
	assert.InDelta(t, 200000, cost, 0.001)
}

func TestAffordFallbackBlockedByGuards(t *testing.T) {
	// Remaining below twice the setup cost: no fallback.
	_, _, ok := Afford(150000, 10000, 200000, 2_000_000, 12, 6, 0.10)
	assert.False(t, ok)

	// Remaining below the budget floor: no fallback.
	_, _, ok = Afford(50000, 25000, 150000, 2_000_000, 12, 6, 0.10)
	assert.False(t, ok)
}

func TestAffordNoFallbackConfigured(t *testing.T) {
	_, _, ok := Afford(50000, 25000, 200000, 200000, 12, 0, 0.10)
	assert.False(t, ok)
}

func TestRunSelectsViaFallbackHorizon(t *testing.T) {
	// Budget equals the single candidate's 6-month cost, below its 12-month.
	c := cand("a", 29.7, -95.3, 1.0, 50000, 25000, 300)

	res, err := Run(context.Background(), distParams(200_000), []model.ScoredCandidate{c})
	require.NoError(t, err)
	require.Len(t, res.Facilities, 1)
	assert.Equal(t, 6, res.Facilities[0].AmortizationMonths)
	assert.InDelta(t, 200_000, res.Facilities[0].CommittedCost, 0.001)
	assert.InDelta(t, 0, res.BudgetRemaining, 0.001)
}

func TestRunStopsBetweenRoundsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, distParams(1_000_000), []model.ScoredCandidate{
		cand("a", 29.7, -95.3, 1.0, 100000, 10000, 300),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Facilities)
}
