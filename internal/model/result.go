package model

import "time"

// Status reports whether an optimization run produced a usable result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ScoringWeights weight the factors of the efficiency score. The three
// weights must sum to 1.
type ScoringWeights struct {
	Need          float64 `json:"need" yaml:"need" mapstructure:"need"`
	AccessBarrier float64 `json:"access_barrier" yaml:"access_barrier" mapstructure:"access_barrier"`
	Poverty       float64 `json:"poverty" yaml:"poverty" mapstructure:"poverty"`
}

// Sum returns the total of the three weights.
func (w ScoringWeights) Sum() float64 {
	return w.Need + w.AccessBarrier + w.Poverty
}

// Request holds the caller-supplied parameters for one optimization run.
type Request struct {
	TotalBudget               float64        `json:"total_budget" yaml:"total_budget"`
	DepotBudgetFraction       float64        `json:"depot_budget_fraction" yaml:"depot_budget_fraction"`
	MaxFacilities             int            `json:"max_facilities" yaml:"max_facilities"`
	MaxDepots                 int            `json:"max_depots" yaml:"max_depots"`
	MinDistanceMiles          float64        `json:"min_distance_miles" yaml:"min_distance_miles"`
	MinDepotDistanceMiles     float64        `json:"min_depot_distance_miles" yaml:"min_depot_distance_miles"`
	DepotServiceRadius        float64        `json:"depot_service_radius_miles" yaml:"depot_service_radius_miles"`
	DistributionServiceRadius float64        `json:"distribution_service_radius_miles" yaml:"distribution_service_radius_miles"`
	Weights                   ScoringWeights `json:"scoring_weights" yaml:"scoring_weights"`
}

// OptimizationResult is the aggregate outcome of a full pipeline run. It is
// always returned, including on failure, with a human-readable reason.
type OptimizationResult struct {
	Status              Status     `json:"status"`
	Reason              string     `json:"reason,omitempty"`
	Facilities          []Facility `json:"facilities"`
	TotalExpectedImpact int        `json:"total_expected_impact"`
	BudgetUsed          float64    `json:"budget_used"`
	BudgetRemaining     float64    `json:"budget_remaining"`
	CoveragePercentage  float64    `json:"coverage_percentage"`
	PopulationCoverage  float64    `json:"population_coverage_percentage"`
	Iterations          int        `json:"iterations"`
	AdjustmentsMade     int        `json:"adjustments_made"`
	ElapsedSeconds      float64    `json:"elapsed_seconds"`
}

// Depots returns the depot-tier facilities in selection order.
func (r *OptimizationResult) Depots() []Facility {
	return r.byTier(TierDepot)
}

// DistributionPoints returns the distribution-tier facilities in selection order.
func (r *OptimizationResult) DistributionPoints() []Facility {
	return r.byTier(TierDistribution)
}

func (r *OptimizationResult) byTier(tier Tier) []Facility {
	var out []Facility
	for _, f := range r.Facilities {
		if f.Tier == tier {
			out = append(out, f)
		}
	}
	return out
}

// RunStatus represents the lifecycle state of a stored optimization run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is a persisted optimization run against a named dataset.
type Run struct {
	ID        string              `json:"id"`
	Dataset   string              `json:"dataset"`
	Request   Request             `json:"request"`
	Status    RunStatus           `json:"status"`
	Result    *OptimizationResult `json:"result,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}
