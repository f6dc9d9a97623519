package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/foodshed/siteplan/internal/ingest"
	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/internal/optimizer"
	"github.com/foodshed/siteplan/internal/report"
	"github.com/foodshed/siteplan/pkg/advisor"
)

var (
	optDataset       string
	optCellsFile     string
	optBudget        float64
	optMaxFacilities int
	optMaxDepots     int
	optMinDistance   float64
	optScenario      string
	optStream        bool
	optJSON          bool
	optXLSX          string
	optNarrate       bool
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run the placement pipeline against a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := buildRequest(cmd)
		if err != nil {
			return err
		}

		var cells []model.Cell
		switch {
		case optCellsFile != "":
			cells, err = ingest.LoadCellsFile(optCellsFile)
			if err != nil {
				return err
			}
		case optDataset != "":
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			cells, err = st.GetDataset(ctx, optDataset)
			if err != nil {
				return eris.Wrapf(err, "load dataset %s", optDataset)
			}
		default:
			return eris.New("either --dataset or --cells is required")
		}

		var opts []optimizer.Option
		if optStream {
			enc := json.NewEncoder(os.Stdout)
			opts = append(opts, optimizer.WithEvents(func(ev optimizer.Event) {
				_ = enc.Encode(ev)
			}))
		}

		opt := optimizer.New(cfg.Optimizer, opts...)
		result, err := opt.Run(ctx, cells, req)
		if err != nil {
			return eris.Wrap(err, "optimize")
		}

		dataset := optDataset
		if dataset == "" {
			dataset = optCellsFile
		}

		if optJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return eris.Wrap(err, "encode result")
			}
		} else if !optStream {
			fmt.Print(report.Text(dataset, &result))
		}

		if optXLSX != "" {
			if err := report.WriteXLSX(optXLSX, dataset, &result); err != nil {
				return err
			}
			zap.L().Info("wrote report", zap.String("path", optXLSX))
		}

		if optNarrate {
			adv := advisor.New(cfg.Advisor.APIKey, cfg.Advisor.Model)
			if adv == nil {
				zap.L().Warn("narrative requested but no advisor API key configured")
			} else {
				narrative, err := adv.Narrate(ctx, dataset, &result)
				if err != nil {
					return eris.Wrap(err, "narrate result")
				}
				fmt.Println()
				fmt.Println(narrative)
			}
		}

		return nil
	},
}

// buildRequest layers the optimize request: config defaults, then the
// scenario file, then explicit flags.
func buildRequest(cmd *cobra.Command) (model.Request, error) {
	req := cfg.Request(optBudget)

	if optScenario != "" {
		data, err := os.ReadFile(optScenario)
		if err != nil {
			return req, eris.Wrapf(err, "read scenario %s", optScenario)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, eris.Wrapf(err, "parse scenario %s", optScenario)
		}
	}

	if cmd.Flags().Changed("budget") {
		req.TotalBudget = optBudget
	}
	if cmd.Flags().Changed("max-facilities") {
		req.MaxFacilities = optMaxFacilities
	}
	if cmd.Flags().Changed("max-depots") {
		req.MaxDepots = optMaxDepots
	}
	if cmd.Flags().Changed("min-distance") {
		req.MinDistanceMiles = optMinDistance
	}

	return req, nil
}

func init() {
	optimizeCmd.Flags().StringVar(&optDataset, "dataset", "", "stored dataset name")
	optimizeCmd.Flags().StringVar(&optCellsFile, "cells", "", "cells file (.json or .csv) instead of a stored dataset")
	optimizeCmd.Flags().Float64Var(&optBudget, "budget", 0, "total budget in dollars")
	optimizeCmd.Flags().IntVar(&optMaxFacilities, "max-facilities", 0, "maximum total facilities")
	optimizeCmd.Flags().IntVar(&optMaxDepots, "max-depots", 0, "maximum depots")
	optimizeCmd.Flags().Float64Var(&optMinDistance, "min-distance", 0, "minimum miles between distribution points")
	optimizeCmd.Flags().StringVar(&optScenario, "scenario", "", "YAML scenario file with request parameters")
	optimizeCmd.Flags().BoolVar(&optStream, "stream", false, "print progress events as JSON lines")
	optimizeCmd.Flags().BoolVar(&optJSON, "json", false, "print the full result as JSON")
	optimizeCmd.Flags().StringVar(&optXLSX, "xlsx", "", "write an XLSX report to this path")
	optimizeCmd.Flags().BoolVar(&optNarrate, "narrate", false, "print an LLM narrative of the result")
	rootCmd.AddCommand(optimizeCmd)
}
