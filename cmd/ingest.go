package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/ingest"
	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/pkg/census"
)

var (
	ingestName      string
	ingestShapeURL  string
	ingestShapePath string
	ingestState     string
	ingestCounty    string
	ingestRiskCSV   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build a cell dataset from a shapefile and ACS demographics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if ingestName == "" {
			return eris.New("--name is required")
		}

		var censusClient census.Client
		if ingestState != "" && ingestCounty != "" {
			var opts []census.Option
			if cfg.Census.RequestsPerSec > 0 {
				opts = append(opts, census.WithRateLimit(cfg.Census.RequestsPerSec))
			}
			if cfg.Census.BaseURL != "" {
				opts = append(opts, census.WithBaseURL(cfg.Census.BaseURL))
			}
			if cfg.Census.APIKey != "" {
				opts = append(opts, census.WithAPIKey(cfg.Census.APIKey))
			}
			censusClient = census.NewClient(opts...)
		}

		cells, err := ingest.New(cfg.Ingest, censusClient).Run(ctx, ingest.Params{
			ShapefileURL:  ingestShapeURL,
			ShapefilePath: ingestShapePath,
			State:         ingestState,
			County:        ingestCounty,
			RiskCSV:       ingestRiskCSV,
		})
		if err != nil {
			return eris.Wrap(err, "ingest")
		}
		if len(cells) == 0 {
			return eris.New("ingest produced no usable cells")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SaveDataset(ctx, ingestName, cells); err != nil {
			return eris.Wrapf(err, "save dataset %s", ingestName)
		}

		stats := model.ComputeStats(cells)
		zap.L().Info("dataset saved",
			zap.String("name", ingestName),
			zap.Int("cells", stats.Cells),
			zap.Int("population", stats.TotalPopulation),
			zap.Int("high_need_cells", stats.HighNeedCells),
		)
		fmt.Fprintf(os.Stdout, "Saved dataset %q: %d cells, %d people\n",
			ingestName, stats.Cells, stats.TotalPopulation)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "dataset name")
	ingestCmd.Flags().StringVar(&ingestShapeURL, "shapefile-url", "", "zipped shapefile URL (http, https or ftp)")
	ingestCmd.Flags().StringVar(&ingestShapePath, "shapefile", "", "path to an extracted .shp file")
	ingestCmd.Flags().StringVar(&ingestState, "state", "", "state FIPS code for the ACS merge")
	ingestCmd.Flags().StringVar(&ingestCounty, "county", "", "county FIPS code for the ACS merge")
	ingestCmd.Flags().StringVar(&ingestRiskCSV, "risk-csv", "", "geoid,risk_score CSV to merge")
	rootCmd.AddCommand(ingestCmd)
}
