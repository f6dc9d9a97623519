// Package optimizer sequences the planning pipeline: score, allocate the
// depot tier, filter by depot coverage, allocate the distribution tier,
// validate. The pipeline is a pure function of (cells, request); it owns
// no datastore and renders no output.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/allocator"
	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/coverage"
	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/internal/scorer"
	"github.com/foodshed/siteplan/internal/validate"
)

// Optimizer runs the two-tier facility-location pipeline.
type Optimizer struct {
	cfg    config.OptimizerConfig
	events EventFunc
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithEvents registers a sink for progress events.
func WithEvents(fn EventFunc) Option {
	return func(o *Optimizer) { o.events = fn }
}

// New creates an Optimizer with the given tunables.
func New(cfg config.OptimizerConfig, opts ...Option) *Optimizer {
	o := &Optimizer{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the full pipeline. Recoverable conditions (no candidates,
// insufficient budget, absent depot tier) produce a success result with
// accurate metrics, never an error; the returned error is non-nil only
// for contract breaches, in which case the result carries status error
// and a reason. The context deadline is honored between allocator rounds.
func (o *Optimizer) Run(ctx context.Context, cells []model.Cell, req model.Request) (model.OptimizationResult, error) {
	start := time.Now()
	cfg := o.effectiveConfig(req)
	req = normalizeRequest(cfg, req)

	if math.IsNaN(req.TotalBudget) || math.IsInf(req.TotalBudget, 0) || req.TotalBudget < 0 {
		return o.fail("total budget must be a non-negative finite number"),
			eris.Wrap(model.ErrInvariantViolated, "optimizer: bad total budget")
	}

	o.emit(EventPhase, "analysis", "analyzing candidate cells", nil)

	pool := make([]model.Cell, 0, len(cells))
	skipped := 0
	for _, c := range cells {
		if c.Population > 0 && c.Valid() {
			pool = append(pool, c)
		} else {
			skipped++
		}
	}
	if skipped > 0 {
		zap.L().Debug("optimizer: skipped unusable cells", zap.Int("skipped", skipped))
	}

	stats := model.ComputeStats(pool)
	o.emit(EventInfo, "analysis",
		fmt.Sprintf("found %d usable cells, population %d", stats.Cells, stats.TotalPopulation),
		map[string]any{
			"cells":            stats.Cells,
			"total_population": stats.TotalPopulation,
			"total_need":       stats.TotalNeed,
			"high_need_cells":  stats.HighNeedCells,
		})

	if len(pool) == 0 || req.TotalBudget == 0 {
		res := o.success(nil, 0, 0, validate.Outcome{}, req.TotalBudget, start)
		o.emit(EventResult, "finalize", "nothing to optimize", map[string]any{"facilities": 0})
		return res, nil
	}

	depotScorer, err := scorer.New(cfg, model.TierDepot)
	if err != nil {
		return o.fail(eris.ToString(err, false)), err
	}
	distScorer, err := scorer.New(cfg, model.TierDistribution)
	if err != nil {
		return o.fail(eris.ToString(err, false)), err
	}

	// Depot tier: coarse placement over region representatives.
	depotBudget := req.TotalBudget * req.DepotBudgetFraction
	o.emit(EventPhase, "depot_allocation",
		fmt.Sprintf("allocating depot tier with budget %.0f", depotBudget), nil)

	depotPool := allocator.DepotCandidates(pool, req.MaxDepots)
	depotCands := depotScorer.ScoreAll(ctx, depotPool, cfg.ScoringWorkers)
	depotRes, err := allocator.Run(ctx, allocator.Params{
		Tier:                model.TierDepot,
		Budget:              depotBudget,
		MinDistanceMiles:    req.MinDepotDistanceMiles,
		MaxFacilities:       req.MaxDepots,
		ServiceRadiusMiles:  req.DepotServiceRadius,
		BudgetFloorFraction: cfg.BudgetFloorFraction,
		PrimaryMonths:       cfg.Amortization.DepotMonths,
	}, depotCands)
	if err != nil {
		return o.fail(eris.ToString(err, false)), err
	}
	o.emit(EventInfo, "depot_allocation",
		fmt.Sprintf("selected %d depot locations", len(depotRes.Facilities)),
		map[string]any{"depots": len(depotRes.Facilities), "rounds": depotRes.Rounds})

	// Distribution tier runs against the depot coverage area.
	filtered, constrained := coverage.FilterByDepots(depotRes.Facilities, pool)
	o.emit(EventInfo, "coverage_filter",
		fmt.Sprintf("%d cells eligible for distribution tier", len(filtered)),
		map[string]any{"constrained": constrained})

	distBudget := req.TotalBudget - depotBudget
	o.emit(EventPhase, "distribution_allocation",
		fmt.Sprintf("allocating distribution tier with budget %.0f", distBudget), nil)

	distCands := distScorer.ScoreAll(ctx, filtered, cfg.ScoringWorkers)
	distRes, err := allocator.Run(ctx, allocator.Params{
		Tier:                model.TierDistribution,
		Budget:              distBudget,
		MinDistanceMiles:    req.MinDistanceMiles,
		MaxFacilities:       req.MaxFacilities,
		ServiceRadiusMiles:  req.DistributionServiceRadius,
		BudgetFloorFraction: cfg.BudgetFloorFraction,
		PrimaryMonths:       cfg.Amortization.PrimaryMonths,
		FallbackMonths:      cfg.Amortization.FallbackMonths,
		Decluster:           allocator.NewDecluster(cfg.Decluster, filtered),
	}, distCands)
	if err != nil {
		return o.fail(eris.ToString(err, false)), err
	}
	o.emit(EventInfo, "distribution_allocation",
		fmt.Sprintf("selected %d distribution points", len(distRes.Facilities)),
		map[string]any{"points": len(distRes.Facilities), "rounds": distRes.Rounds})

	depots := coverage.AssignServed(depotRes.Facilities, distRes.Facilities)
	proposed := append(append([]model.Facility{}, depots...), distRes.Facilities...)

	o.emit(EventPhase, "validation", "validating proposed facilities", nil)
	outcome := validate.Run(validate.Params{
		TotalBudget:         req.TotalBudget,
		FloorFraction:       cfg.BudgetFloorFraction,
		DepotBudgetFraction: req.DepotBudgetFraction,
		Depot: validate.TierAmortization{
			PrimaryMonths: cfg.Amortization.DepotMonths,
		},
		Distribution: validate.TierAmortization{
			PrimaryMonths:  cfg.Amortization.PrimaryMonths,
			FallbackMonths: cfg.Amortization.FallbackMonths,
		},
	}, proposed, pool)
	o.emit(EventInfo, "validation",
		fmt.Sprintf("%d facilities validated, %d adjustments", len(outcome.Facilities), outcome.AdjustmentsMade),
		map[string]any{"validated": len(outcome.Facilities), "adjustments": outcome.AdjustmentsMade})

	res := o.success(outcome.Facilities, depotRes.Rounds, distRes.Rounds, outcome, req.TotalBudget, start)
	o.emit(EventResult, "finalize",
		fmt.Sprintf("optimization complete: %d facilities serving %d people", len(res.Facilities), res.TotalExpectedImpact),
		map[string]any{
			"facilities":       len(res.Facilities),
			"impact":           res.TotalExpectedImpact,
			"budget_used":      res.BudgetUsed,
			"coverage_percent": res.CoveragePercentage,
			"iterations":       res.Iterations,
		})

	zap.L().Info("optimizer: run complete",
		zap.Int("facilities", len(res.Facilities)),
		zap.Int("impact", res.TotalExpectedImpact),
		zap.Float64("budget_used", res.BudgetUsed),
		zap.Float64("elapsed_seconds", res.ElapsedSeconds),
	)
	return res, nil
}

// effectiveConfig overlays request-supplied weights on the configured
// defaults.
func (o *Optimizer) effectiveConfig(req model.Request) config.OptimizerConfig {
	cfg := o.cfg
	if req.Weights.Sum() > 0 {
		cfg.Weights = req.Weights
	}
	return cfg
}

// normalizeRequest fills unset request fields from the configured defaults.
func normalizeRequest(cfg config.OptimizerConfig, req model.Request) model.Request {
	if req.DepotBudgetFraction <= 0 || req.DepotBudgetFraction >= 1 {
		req.DepotBudgetFraction = cfg.DepotBudgetFraction
	}
	if req.MaxFacilities <= 0 {
		req.MaxFacilities = cfg.MaxFacilities
	}
	if req.MaxDepots <= 0 {
		req.MaxDepots = cfg.MaxDepots
	}
	if req.MinDistanceMiles <= 0 {
		req.MinDistanceMiles = cfg.MinDistanceMiles
	}
	if req.MinDepotDistanceMiles <= 0 {
		req.MinDepotDistanceMiles = cfg.MinDepotDistanceMiles
	}
	if req.DepotServiceRadius <= 0 {
		req.DepotServiceRadius = cfg.DepotServiceRadius
	}
	if req.DistributionServiceRadius <= 0 {
		req.DistributionServiceRadius = cfg.DistributionServiceRadius
	}
	if req.Weights.Sum() == 0 {
		req.Weights = cfg.Weights
	}
	return req
}

func (o *Optimizer) success(facilities []model.Facility, depotRounds, distRounds int, outcome validate.Outcome, totalBudget float64, start time.Time) model.OptimizationResult {
	if facilities == nil {
		facilities = []model.Facility{}
	}
	return model.OptimizationResult{
		Status:              model.StatusSuccess,
		Facilities:          facilities,
		TotalExpectedImpact: outcome.TotalImpact,
		BudgetUsed:          outcome.BudgetUsed,
		BudgetRemaining:     totalBudget - outcome.BudgetUsed,
		CoveragePercentage:  outcome.CoveragePercentage,
		PopulationCoverage:  math.Min(outcome.PopulationCoverage, 100),
		Iterations:          depotRounds + distRounds,
		AdjustmentsMade:     outcome.AdjustmentsMade,
		ElapsedSeconds:      time.Since(start).Seconds(),
	}
}

func (o *Optimizer) fail(reason string) model.OptimizationResult {
	o.emit(EventError, "", reason, nil)
	return model.OptimizationResult{
		Status:     model.StatusError,
		Reason:     reason,
		Facilities: []model.Facility{},
	}
}
