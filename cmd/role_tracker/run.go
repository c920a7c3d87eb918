package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a discovery batch followed by a tracking pass",
	Long: `One full cycle: a discovery batch from the persisted cursor, then a tracking pass over every
active source, then an export of the projections when --export is set.`,
	RunE: runCycleCmd,
}

var runExport bool

func init() {
	runCmd.Flags().BoolVar(&runExport, "export", false, "Write projection files to export.dir after tracking")
	rootCmd.AddCommand(runCmd)
}

func runCycleCmd(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.cycle(cmd.Context(), runExport, true)
}

// cycle runs discovery then tracking. A failed discovery batch is reported
// but does not prevent tracking of sources already known.
func (a *app) cycle(ctx context.Context, export, report bool) error {
	res, before, after, derr := a.discover(ctx)
	if derr != nil {
		a.logger.Error("discovery batch failed", zap.Error(derr))
	} else if report {
		a.printer.PrintBatchSummary(res, before, after)
	}

	run, err := a.track(ctx)
	if run != nil && report {
		if rerr := a.reportTrack(ctx, run); rerr != nil {
			a.logger.Warn("failed to report tracking run", zap.Error(rerr))
		}
	}
	if err != nil {
		return fmt.Errorf("tracking run failed: %w", err)
	}

	if export {
		paths, err := a.export(ctx, a.cfg.Export.Dir, nil)
		if err != nil {
			return err
		}
		for _, p := range paths {
			a.logger.Info("wrote projection", zap.String("path", p))
		}
	}

	if derr != nil {
		return fmt.Errorf("discovery batch failed: %w", derr)
	}
	return nil
}
