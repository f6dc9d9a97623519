package model

// Tier identifies which placement tier a facility belongs to.
type Tier string

const (
	// TierDepot is the large-radius regional tier allocated first.
	TierDepot Tier = "depot"
	// TierDistribution is the small-radius local tier allocated within
	// depot coverage.
	TierDistribution Tier = "distribution"
)

// Facility is the optimizer's output unit. Facilities are created once by
// the allocator and are read-only afterward, except for ServedFacilityIDs
// on depot-tier facilities, which the coverage filter appends to after the
// distribution tier is allocated.
type Facility struct {
	ID                 string  `json:"id"`
	Lat                float64 `json:"lat"`
	Lon                float64 `json:"lon"`
	Tier               Tier    `json:"tier"`
	ServiceRadius      float64 `json:"service_radius_miles"`
	SetupCost          float64 `json:"setup_cost"`
	RecurringCost      float64 `json:"recurring_cost_monthly"`
	EfficiencyScore    float64 `json:"efficiency_score"`
	ExpectedImpact     int     `json:"expected_impact"`
	CommittedCost      float64 `json:"committed_cost"`
	AmortizationMonths int     `json:"amortization_months"`

	// ServedFacilityIDs lists the distribution-tier facilities this depot
	// supplies. Empty for distribution-tier facilities.
	ServedFacilityIDs []string `json:"served_facility_ids,omitempty"`
}

// ScoredCandidate pairs a cell with its tier-specific suitability score and
// cost estimates. Candidates are produced fresh per allocator run, sorted,
// and discarded; they are never mutated after creation.
type ScoredCandidate struct {
	Cell            Cell    `json:"cell"`
	EfficiencyScore float64 `json:"efficiency_score"`
	SetupCost       float64 `json:"setup_cost"`
	RecurringCost   float64 `json:"recurring_cost_monthly"`
	ExpectedImpact  float64 `json:"expected_impact"`
}
