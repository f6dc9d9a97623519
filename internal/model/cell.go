package model

import "math"

// Cell is the smallest unit of geography the planner works with: a census
// block (or block group) with demographic attributes. Cells are read-only
// inputs for the whole optimization run.
type Cell struct {
	ID                string  `json:"id"`
	Lat               float64 `json:"lat"`
	Lon               float64 `json:"lon"`
	Population        int     `json:"population"`
	RiskScore         float64 `json:"risk_score"`
	PovertyRate       float64 `json:"poverty_rate"`
	BenefitRate       float64 `json:"benefit_rate"`
	VehicleAccessRate float64 `json:"vehicle_access_rate"`
	NeedIndex         float64 `json:"need_index"`
}

// Valid reports whether the cell has a usable centroid and non-negative
// population. Cells failing this check are skipped, never fatal.
func (c Cell) Valid() bool {
	if c.ID == "" || c.Population < 0 {
		return false
	}
	for _, v := range []float64{c.Lat, c.Lon, c.RiskScore, c.PovertyRate, c.BenefitRate, c.VehicleAccessRate, c.NeedIndex} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// DatasetStats summarizes a cell dataset at ingest time.
type DatasetStats struct {
	Cells           int     `json:"cells"`
	TotalPopulation int     `json:"total_population"`
	TotalNeed       float64 `json:"total_need"`
	MeanRiskScore   float64 `json:"mean_risk_score"`
	HighNeedCells   int     `json:"high_need_cells"`
}

// highNeedRiskThreshold marks cells whose risk score indicates acute need.
const highNeedRiskThreshold = 4.0

// ComputeStats aggregates dataset statistics over the given cells.
func ComputeStats(cells []Cell) DatasetStats {
	stats := DatasetStats{Cells: len(cells)}
	if len(cells) == 0 {
		return stats
	}
	riskSum := 0.0
	for _, c := range cells {
		stats.TotalPopulation += c.Population
		stats.TotalNeed += c.NeedIndex
		riskSum += c.RiskScore
		if c.RiskScore > highNeedRiskThreshold {
			stats.HighNeedCells++
		}
	}
	stats.MeanRiskScore = riskSum / float64(len(cells))
	return stats
}
