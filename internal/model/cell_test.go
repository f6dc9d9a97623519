package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellValid(t *testing.T) {
	base := Cell{ID: "482011000001", Lat: 29.76, Lon: -95.36, Population: 1200, RiskScore: 3.2, NeedIndex: 3840}

	assert.True(t, base.Valid())

	tests := []struct {
		name   string
		mutate func(*Cell)
	}{
		{"missing id", func(c *Cell) { c.ID = "" }},
		{"negative population", func(c *Cell) { c.Population = -1 }},
		{"nan latitude", func(c *Cell) { c.Lat = math.NaN() }},
		{"infinite need", func(c *Cell) { c.NeedIndex = math.Inf(1) }},
		{"latitude out of range", func(c *Cell) { c.Lat = 91 }},
		{"longitude out of range", func(c *Cell) { c.Lon = -181 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.False(t, c.Valid())
		})
	}
}

func TestComputeStats(t *testing.T) {
	cells := []Cell{
		{ID: "a", Population: 1000, RiskScore: 5.0, NeedIndex: 5000},
		{ID: "b", Population: 500, RiskScore: 3.0, NeedIndex: 1500},
		{ID: "c", Population: 250, RiskScore: 6.0, NeedIndex: 1500},
	}

	stats := ComputeStats(cells)
	assert.Equal(t, 3, stats.Cells)
	assert.Equal(t, 1750, stats.TotalPopulation)
	assert.InDelta(t, 8000, stats.TotalNeed, 0.001)
	assert.InDelta(t, 14.0/3.0, stats.MeanRiskScore, 0.001)
	assert.Equal(t, 2, stats.HighNeedCells)
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Equal(t, 0, stats.Cells)
	assert.Equal(t, 0.0, stats.MeanRiskScore)
}
