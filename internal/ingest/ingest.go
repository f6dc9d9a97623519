// Package ingest builds cell datasets from TIGER/Line shapefiles, ACS
// demographics, and optional risk-score CSVs.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/config"
	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/pkg/census"
)

// Params describes one ingest job.
type Params struct {
	// ShapefileURL is a zipped shapefile over http(s) or ftp. ShapefilePath
	// points at an already-extracted .shp instead; exactly one is required.
	ShapefileURL  string
	ShapefilePath string

	// State and County FIPS codes select the ACS query. Empty skips the
	// demographics merge.
	State  string
	County string

	// RiskCSV is an optional geoid,risk_score file.
	RiskCSV string
}

// Ingestor assembles datasets.
type Ingestor struct {
	cfg    config.IngestConfig
	census census.Client
}

// New creates an Ingestor. The census client may be nil when demographics
// are not wanted.
func New(cfg config.IngestConfig, censusClient census.Client) *Ingestor {
	return &Ingestor{cfg: cfg, census: censusClient}
}

// Run executes the ingest job and returns the finished cells.
func (in *Ingestor) Run(ctx context.Context, p Params) ([]model.Cell, error) {
	shpPath := p.ShapefilePath
	if shpPath == "" {
		if p.ShapefileURL == "" {
			return nil, eris.New("ingest: shapefile url or path is required")
		}
		var err error
		shpPath, err = Fetch(ctx, p.ShapefileURL, in.cfg.TempDir)
		if err != nil {
			return nil, err
		}
	}

	seeds, err := ReadCells(shpPath, ShapefileOptions{
		GeoIDField: in.cfg.GeoIDField,
		PopField:   in.cfg.PopField,
	})
	if err != nil {
		return nil, err
	}

	if p.State != "" && p.County != "" && in.census != nil {
		demos, err := in.census.BlockGroups(ctx, p.State, p.County)
		if err != nil {
			return nil, err
		}
		seeds = MergeDemographics(seeds, demos)
	}

	if p.RiskCSV != "" {
		risks, err := LoadRiskCSV(p.RiskCSV)
		if err != nil {
			return nil, err
		}
		seeds = ApplyRisk(seeds, risks)
	}

	cells := Finalize(seeds)
	zap.L().Info("ingest: dataset ready",
		zap.String("shapefile", shpPath),
		zap.Int("cells", len(cells)),
	)
	return cells, nil
}
