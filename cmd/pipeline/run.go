package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"market-pipeline/internal/app"
	"market-pipeline/internal/model"
	"market-pipeline/internal/pipeline"
	"market-pipeline/internal/store"
	"market-pipeline/pkg/logger"
	"market-pipeline/pkg/metrics"
)

var (
	runDatasets []string
	runExport   string
	runWorkers  int
	runNoLedger bool
)

var errNoResults = errors.New("no dataset produced an analysis")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once over the configured datasets",
	Example: `  pipeline run
  pipeline run --dataset affliction=https://example.com/affliction.csv --workers 4
  pipeline run --export summary.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = runWorkers
		}
		if runExport != "" {
			cfg.ExportFile = runExport
		}

		specs := cfg.DatasetSpecs()
		if len(runDatasets) > 0 {
			if specs, err = parseDatasetFlags(runDatasets); err != nil {
				return err
			}
		}

		log := logger.Get()
		opts := []pipeline.Option{pipeline.WithMetrics(metrics.NewManager())}
		if !runNoLedger {
			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer db.Close()
			opts = append(opts, pipeline.WithRecorder(db))
		}

		orch, err := app.NewOrchestrator(ctx, cfg, log, opts...)
		if err != nil {
			return err
		}
		batch, err := orch.Run(ctx, specs)
		if err != nil {
			return err
		}

		printBatch(cmd.OutOrStdout(), batch)

		if cfg.ExportFile != "" {
			res, err := pipeline.ExportBatch(ctx, batch, cfg.ExportFile)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s (%s)\n", res.RecordCount, res.Path, res.Type)
		}

		if len(batch.Results) == 0 {
			return errNoResults
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringArrayVarP(&runDatasets, "dataset", "d", nil, "dataset as name=source; repeatable, replaces configured datasets")
	runCmd.Flags().StringVar(&runExport, "export", "", "write a batch export (.json, .csv or .xlsx)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 1, "datasets processed concurrently per stage")
	runCmd.Flags().BoolVar(&runNoLedger, "no-ledger", false, "do not record the run in the ledger database")
}

// parseDatasetFlags turns name=source pairs into specs. Only the first '='
// separates name from source, so query strings survive.
func parseDatasetFlags(values []string) ([]model.DatasetSpec, error) {
	specs := make([]model.DatasetSpec, 0, len(values))
	for _, v := range values {
		name, source, ok := strings.Cut(v, "=")
		name, source = strings.TrimSpace(name), strings.TrimSpace(source)
		if !ok || name == "" || source == "" {
			return nil, fmt.Errorf("invalid --dataset %q: want name=source", v)
		}
		specs = append(specs, model.DatasetSpec{Name: name, Source: source})
	}
	return specs, nil
}

func printBatch(w io.Writer, batch *model.BatchResult) {
	fmt.Fprintf(w, "run %s: %s\n", batch.RunID, batch.Status())

	names := make([]string, 0, len(batch.Datasets))
	for name := range batch.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := make(map[string]model.DatasetFailure, len(batch.Failures))
	for _, f := range batch.Failures {
		failures[f.Dataset] = f
	}

	for _, name := range names {
		if a, ok := batch.Results[name]; ok {
			fmt.Fprintf(w, "  %-24s ok      %s (%d values, mean %.4f)\n", name, a.Location, a.Samples, a.Result.Centers.Mean)
		} else if f, ok := failures[name]; ok {
			fmt.Fprintf(w, "  %-24s failed  %s/%s after %d attempt(s): %s\n", name, f.Stage, f.Kind, f.Attempts, f.Message)
		}
		for _, warn := range batch.Datasets[name].Warnings {
			fmt.Fprintf(w, "  %-24s warning %s\n", "", warn)
		}
	}
}
