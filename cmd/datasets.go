package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/foodshed/siteplan/internal/store"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Manage stored cell datasets",
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		datasets, err := st.ListDatasets(ctx)
		if err != nil {
			return eris.Wrap(err, "datasets list")
		}
		if len(datasets) == 0 {
			fmt.Fprintln(os.Stderr, "No datasets found.")
			return nil
		}

		formatDatasetsList(os.Stdout, datasets)
		return nil
	},
}

var datasetsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteDataset(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "delete dataset %s", args[0])
		}
		fmt.Fprintf(os.Stdout, "Deleted dataset %q\n", args[0])
		return nil
	},
}

func formatDatasetsList(out io.Writer, datasets []store.DatasetInfo) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCELLS\tPOPULATION\tCREATED")
	_, _ = fmt.Fprintln(w, "----\t-----\t----------\t-------")
	for _, d := range datasets {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			d.Name, d.CellCount, d.Population, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func init() {
	datasetsCmd.AddCommand(datasetsListCmd)
	datasetsCmd.AddCommand(datasetsDeleteCmd)
	rootCmd.AddCommand(datasetsCmd)
}
