package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/report"
)

var reportXLSX string

var reportCmd = &cobra.Command{
	Use:   "report <run-id>",
	Short: "Re-export a stored run as a summary or XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "load run")
		}
		if run.Result == nil {
			return eris.Errorf("run %s has no result yet (status %s)", run.ID, run.Status)
		}

		fmt.Print(report.Text(run.Dataset, run.Result))

		if reportXLSX != "" {
			if err := report.WriteXLSX(reportXLSX, run.Dataset, run.Result); err != nil {
				return err
			}
			zap.L().Info("wrote report", zap.String("path", reportXLSX))
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "write an XLSX report to this path")
	rootCmd.AddCommand(reportCmd)
}
