package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/triguard/subro-cli/internal/model"
	"github.com/triguard/subro-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List training runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
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
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tOOF F1\tOOF AUC\tTHRESHOLD\tCREATED")
	for _, r := range runs {
		f1, auc, thr := "-", "-", "-"
		if r.Metrics != nil {
			f1 = fmt.Sprintf("%.4f", r.Metrics.OOFF1)
			auc = fmt.Sprintf("%.4f", r.Metrics.OOFAUC)
			thr = fmt.Sprintf("%.3f", r.Metrics.Threshold)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, f1, auc, thr, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

func init() {
	runsCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
