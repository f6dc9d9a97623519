package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/pkg/census"
)

// CellSeed is a cell under construction: geometry and population from the
// shapefile, demographics and risk merged afterwards.
type CellSeed struct {
	GeoID             string
	Lat               float64
	Lon               float64
	Population        int
	RiskScore         float64
	PovertyRate       float64
	BenefitRate       float64
	VehicleAccessRate float64
	NeedIndex         float64
}

// MergeDemographics joins ACS demographics onto seeds by GeoID. ACS
// population overrides the shapefile attribute when present. Seeds without
// a demographics row keep their shapefile values.
func MergeDemographics(seeds []CellSeed, demos []census.Demographics) []CellSeed {
	byGeoID := make(map[string]census.Demographics, len(demos))
	for _, d := range demos {
		byGeoID[d.GeoID] = d
	}

	matched := 0
	for i := range seeds {
		d, ok := byGeoID[seeds[i].GeoID]
		if !ok {
			continue
		}
		matched++
		seeds[i].Population = d.Population
		seeds[i].PovertyRate = d.PovertyRate
		seeds[i].BenefitRate = d.BenefitRate
		seeds[i].VehicleAccessRate = d.VehicleAccessRate
	}

	zap.L().Info("ingest: merged demographics",
		zap.Int("seeds", len(seeds)),
		zap.Int("matched", matched),
	)
	return seeds
}

// LoadRiskCSV reads a geoid,risk_score CSV. A header row is detected and
// skipped when its second column does not parse as a number.
func LoadRiskCSV(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open risk csv %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	risks := make(map[string]float64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read risk csv")
		}
		if len(record) < 2 {
			continue
		}
		risk, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			continue
		}
		risks[strings.TrimSpace(record[0])] = risk
	}
	return risks, nil
}

// ApplyRisk attaches risk scores to seeds by GeoID.
func ApplyRisk(seeds []CellSeed, risks map[string]float64) []CellSeed {
	for i := range seeds {
		if r, ok := risks[seeds[i].GeoID]; ok {
			seeds[i].RiskScore = r
		}
	}
	return seeds
}

// Finalize turns seeds into cells, deriving the need index as population
// times risk score where no upstream source provided one, and dropping
// unpopulated or invalid cells.
func Finalize(seeds []CellSeed) []model.Cell {
	cells := make([]model.Cell, 0, len(seeds))
	dropped := 0
	for _, s := range seeds {
		need := s.NeedIndex
		if need == 0 {
			need = float64(s.Population) * s.RiskScore
		}

		c := model.Cell{
			ID:                s.GeoID,
			Lat:               s.Lat,
			Lon:               s.Lon,
			Population:        s.Population,
			RiskScore:         s.RiskScore,
			PovertyRate:       s.PovertyRate,
			BenefitRate:       s.BenefitRate,
			VehicleAccessRate: s.VehicleAccessRate,
			NeedIndex:         need,
		}
		if c.Population == 0 || !c.Valid() {
			dropped++
			continue
		}
		cells = append(cells, c)
	}

	if dropped > 0 {
		zap.L().Debug("ingest: dropped unusable seeds", zap.Int("dropped", dropped))
	}
	return cells
}
