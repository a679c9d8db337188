package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"market-pipeline/internal/store"
)

var (
	runsLimit  int
	runsFailed bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs, or the datasets of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		db, err := store.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer db.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()

		if len(args) == 0 {
			runs, err := db.ListRuns(ctx, runsLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "RUN\tSTATUS\tDATASETS\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Status, len(r.Specs), r.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		}

		outcomes, err := db.GetDatasetOutcomes(ctx, args[0], runsFailed)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "DATASET\tSTATE\tSTAGE\tKIND\tATTEMPTS\tMESSAGE")
		for _, o := range outcomes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", o.Dataset, o.State, o.Stage, o.ErrorKind, o.Attempts, o.ErrorMessage)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to list")
	runsCmd.Flags().BoolVar(&runsFailed, "failed", false, "only show failed datasets")
}
