// Package scorer computes per-cell suitability scores and cost estimates
// for one placement tier. Scoring is pure: the same cell and configuration
// always produce the same candidate.
package scorer

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
)

// Scorer turns cells into scored candidates using a weighted linear
// combination of normalized need, access-barrier, and poverty factors.
type Scorer struct {
	weights  model.ScoringWeights
	needNorm float64
	cost     config.CostConfig
	impact   config.ImpactConfig
	costMul  float64
}

// weightSumTolerance bounds the acceptable drift of the weight sum from 1.
const weightSumTolerance = 1e-6

// New builds a Scorer for the given tier. Depot-tier scorers apply the
// configured cost multiplier. Weights not summing to 1 are a contract
// breach, not a data defect, and fail construction.
func New(o config.OptimizerConfig, tier model.Tier) (*Scorer, error) {
	if math.Abs(o.Weights.Sum()-1) > weightSumTolerance {
		return nil, eris.Wrapf(model.ErrInvariantViolated,
			"scoring weights sum to %v, want 1", o.Weights.Sum())
	}
	if o.NeedNormalization <= 0 {
		return nil, eris.Wrapf(model.ErrInvariantViolated,
			"need normalization %v, want > 0", o.NeedNormalization)
	}

	mul := 1.0
	if tier == model.TierDepot && o.Cost.DepotMultiplier > 0 {
		mul = o.Cost.DepotMultiplier
	}

	return &Scorer{
		weights:  o.Weights,
		needNorm: o.NeedNormalization,
		cost:     o.Cost,
		impact:   o.Impact,
		costMul:  mul,
	}, nil
}

// Score returns the candidate for a cell, or ok=false when the cell must
// be silently filtered: zero population (the caller should have excluded
// it upstream) or a malformed record.
func (s *Scorer) Score(c model.Cell) (model.ScoredCandidate, bool) {
	if c.Population == 0 || !c.Valid() {
		return model.ScoredCandidate{}, false
	}

	needFactor := c.NeedIndex / s.needNorm
	accessBarrier := 1 - c.VehicleAccessRate
	poverty := c.PovertyRate

	efficiency := s.weights.Need*needFactor +
		s.weights.AccessBarrier*accessBarrier +
		s.weights.Poverty*poverty

	// Impact is capped by both how much need exists and how many people
	// physically fit the facility's realistic catchment.
	impact := math.Min(
		c.NeedIndex*s.impact.ServeFraction,
		float64(c.Population)*s.impact.PopulationCapFraction,
	)

	setup := s.costMul * (s.cost.SetupBase + math.Min(s.cost.SetupCap, impact*s.cost.SetupPerUnit))
	recurring := s.costMul * (s.cost.RecurringBase + math.Min(s.cost.RecurringCap, impact*s.cost.RecurringPerUnit))

	return model.ScoredCandidate{
		Cell:            c,
		EfficiencyScore: efficiency,
		SetupCost:       setup,
		RecurringCost:   recurring,
		ExpectedImpact:  impact,
	}, true
}
