package report

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/foodshed/siteplan/internal/model"
)

// Text renders a short human-readable summary with grouped digits.
func Text(dataset string, res *model.OptimizationResult) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	if res.Status == model.StatusError {
		p.Fprintf(&b, "Optimization of %s failed: %s\n", dataset, res.Reason)
		return b.String()
	}

	p.Fprintf(&b, "Optimization of %s complete\n", dataset)
	p.Fprintf(&b, "  Facilities:          %d depots, %d distribution points\n",
		len(res.Depots()), len(res.DistributionPoints()))
	p.Fprintf(&b, "  Expected impact:     %d people\n", res.TotalExpectedImpact)
	p.Fprintf(&b, "  Budget used:         $%.0f ($%.0f remaining)\n", res.BudgetUsed, res.BudgetRemaining)
	p.Fprintf(&b, "  Coverage:            %.1f%% of cells, %.1f%% of population\n",
		res.CoveragePercentage, res.PopulationCoverage)
	p.Fprintf(&b, "  Rounds:              %d (%d adjustments)\n", res.Iterations, res.AdjustmentsMade)
	p.Fprintf(&b, "  Elapsed:             %.2fs\n", res.ElapsedSeconds)

	return b.String()
}
