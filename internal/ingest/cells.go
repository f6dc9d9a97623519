package ingest

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foodshed/siteplan/internal/model"
)

// LoadCellsFile reads a prepared cell dataset directly, bypassing the
// shapefile pipeline. JSON files hold an array of cells; CSV files carry
// the columns id,lat,lon,population,risk_score,poverty_rate,benefit_rate,
// vehicle_access_rate,need_index with a header row.
func LoadCellsFile(path string) ([]model.Cell, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadCellsJSON(path)
	case ".csv":
		return loadCellsCSV(path)
	default:
		return nil, eris.Errorf("ingest: unsupported cells file %s (want .json or .csv)", path)
	}
}

func loadCellsJSON(path string) ([]model.Cell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open cells file %s", path)
	}
	defer f.Close() //nolint:errcheck

	var cells []model.Cell
	if err := json.NewDecoder(f).Decode(&cells); err != nil {
		return nil, eris.Wrapf(err, "ingest: decode cells file %s", path)
	}
	return usableCells(cells), nil
}

func loadCellsCSV(path string) ([]model.Cell, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open cells file %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read cells header %s", path)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "lat", "lon", "population"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("ingest: cells file %s missing column %s", path, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	num := func(record []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(record, name), 64)
		return v
	}

	var cells []model.Cell
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read cells file %s", path)
		}
		pop, err := strconv.Atoi(field(record, "population"))
		if err != nil {
			continue
		}
		cells = append(cells, model.Cell{
			ID:                field(record, "id"),
			Lat:               num(record, "lat"),
			Lon:               num(record, "lon"),
			Population:        pop,
			RiskScore:         num(record, "risk_score"),
			PovertyRate:       num(record, "poverty_rate"),
			BenefitRate:       num(record, "benefit_rate"),
			VehicleAccessRate: num(record, "vehicle_access_rate"),
			NeedIndex:         num(record, "need_index"),
		})
	}
	return usableCells(cells), nil
}

func usableCells(cells []model.Cell) []model.Cell {
	out := cells[:0]
	for _, c := range cells {
		if c.Valid() && c.Population > 0 {
			out = append(out, c)
		}
	}
	return out
}
