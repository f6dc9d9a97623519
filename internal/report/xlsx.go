// Package report renders optimization results as spreadsheets and
// plain-text summaries.
package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/foodshed/siteplan/internal/model"
)

// WriteXLSX writes a workbook with a summary sheet and a facilities sheet.
func WriteXLSX(path, dataset string, res *model.OptimizationResult) error {
	f := xlsx.NewFile()

	if err := addSummarySheet(f, dataset, res); err != nil {
		return err
	}
	if err := addFacilitiesSheet(f, res); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addSummarySheet(f *xlsx.File, dataset string, res *model.OptimizationResult) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}

	addKV := func(key string, set func(*xlsx.Cell)) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		set(row.AddCell())
	}

	addKV("Dataset", func(c *xlsx.Cell) { c.Value = dataset })
	addKV("Status", func(c *xlsx.Cell) { c.Value = string(res.Status) })
	if res.Reason != "" {
		addKV("Reason", func(c *xlsx.Cell) { c.Value = res.Reason })
	}
	addKV("Depots", func(c *xlsx.Cell) { c.SetInt(len(res.Depots())) })
	addKV("Distribution points", func(c *xlsx.Cell) { c.SetInt(len(res.DistributionPoints())) })
	addKV("Expected impact (people)", func(c *xlsx.Cell) { c.SetInt(res.TotalExpectedImpact) })
	addKV("Budget used", func(c *xlsx.Cell) { c.SetFloat(res.BudgetUsed) })
	addKV("Budget remaining", func(c *xlsx.Cell) { c.SetFloat(res.BudgetRemaining) })
	addKV("Coverage %", func(c *xlsx.Cell) { c.SetFloat(res.CoveragePercentage) })
	addKV("Population coverage %", func(c *xlsx.Cell) { c.SetFloat(res.PopulationCoverage) })
	addKV("Iterations", func(c *xlsx.Cell) { c.SetInt(res.Iterations) })
	addKV("Adjustments", func(c *xlsx.Cell) { c.SetInt(res.AdjustmentsMade) })
	addKV("Elapsed seconds", func(c *xlsx.Cell) { c.SetFloat(res.ElapsedSeconds) })

	return nil
}

var facilityHeader = []string{
	"ID", "Tier", "Latitude", "Longitude", "Service radius (mi)",
	"Setup cost", "Recurring cost", "Committed cost", "Amortization (months)",
	"Efficiency score", "Expected impact", "Served facilities",
}

func addFacilitiesSheet(f *xlsx.File, res *model.OptimizationResult) error {
	sheet, err := f.AddSheet("Facilities")
	if err != nil {
		return eris.Wrap(err, "report: add facilities sheet")
	}

	header := sheet.AddRow()
	for _, h := range facilityHeader {
		header.AddCell().Value = h
	}

	for _, fac := range res.Facilities {
		row := sheet.AddRow()
		row.AddCell().Value = fac.ID
		row.AddCell().Value = string(fac.Tier)
		row.AddCell().SetFloat(fac.Lat)
		row.AddCell().SetFloat(fac.Lon)
		row.AddCell().SetFloat(fac.ServiceRadius)
		row.AddCell().SetFloat(fac.SetupCost)
		row.AddCell().SetFloat(fac.RecurringCost)
		row.AddCell().SetFloat(fac.CommittedCost)
		row.AddCell().SetInt(fac.AmortizationMonths)
		row.AddCell().SetFloat(fac.EfficiencyScore)
		row.AddCell().SetInt(fac.ExpectedImpact)
		row.AddCell().SetInt(len(fac.ServedFacilityIDs))
	}

	return nil
}
