package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run one tracking pass over every active source",
	Long: `Fetches every active source, merges the postings into history and records the run.
Postings first seen in this run are printed at the end.`,
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.track(cmd.Context())
	if run != nil {
		if rerr := a.reportTrack(cmd.Context(), run); rerr != nil && err == nil {
			err = rerr
		}
	}
	if err != nil {
		return fmt.Errorf("tracking run failed: %w", err)
	}
	return nil
}
