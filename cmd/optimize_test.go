package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Optimizer: config.OptimizerConfig{
			DepotBudgetFraction:       0.25,
			MaxFacilities:             1000,
			MaxDepots:                 4,
			MinDistanceMiles:          0.5,
			MinDepotDistanceMiles:     3.0,
			DepotServiceRadius:        6.0,
			DistributionServiceRadius: 1.5,
			Weights:                   model.ScoringWeights{Need: 0.5, AccessBarrier: 0.3, Poverty: 0.2},
		},
	}
}

func TestBuildRequestDefaults(t *testing.T) {
	cfg = testConfig()
	t.Cleanup(func() { cfg = nil; optScenario = "" })

	req, err := buildRequest(optimizeCmd)
	require.NoError(t, err)
	assert.Equal(t, 0.25, req.DepotBudgetFraction)
	assert.Equal(t, 4, req.MaxDepots)
	assert.Equal(t, 0.5, req.MinDistanceMiles)
}

func TestBuildRequestScenarioOverridesDefaults(t *testing.T) {
	cfg = testConfig()
	t.Cleanup(func() { cfg = nil; optScenario = "" })

	scenario := filepath.Join(t.TempDir(), "scenario.yaml")
	data := "total_budget: 750000\nmax_depots: 2\nscoring_weights:\n  need: 0.6\n  access_barrier: 0.25\n  poverty: 0.15\n"
	require.NoError(t, os.WriteFile(scenario, []byte(data), 0o644))
	optScenario = scenario

	req, err := buildRequest(optimizeCmd)
	require.NoError(t, err)
	assert.Equal(t, 750000.0, req.TotalBudget)
	assert.Equal(t, 2, req.MaxDepots)
	assert.Equal(t, 0.6, req.Weights.Need)
	assert.Equal(t, 1000, req.MaxFacilities, "unset scenario keys keep config defaults")
}

func TestBuildRequestBadScenario(t *testing.T) {
	cfg = testConfig()
	t.Cleanup(func() { cfg = nil; optScenario = "" })

	scenario := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte("total_budget: [not a number"), 0o644))
	optScenario = scenario

	_, err := buildRequest(optimizeCmd)
	require.Error(t, err)
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID: "run-1", Dataset: "austin", Status: model.RunStatusComplete,
			Result:    &model.OptimizationResult{Facilities: make([]model.Facility, 3), BudgetUsed: 383744},
			CreatedAt: now, UpdatedAt: now.Add(2 * time.Second),
		},
		{ID: "run-2", Dataset: "travis", Status: model.RunStatusQueued, CreatedAt: now, UpdatedAt: now},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "$383744")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "-", "runs without a result show placeholders")
}
