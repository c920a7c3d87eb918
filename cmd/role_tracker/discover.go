package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var discoverFlags struct {
	limit       int
	maxDuration string
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery batch from the persisted cursor",
	Long: `Attempts up to --limit companies starting at the discovery cursor, probing each for ATS boards.
The batch stops dispatching once --max-duration has elapsed; in-flight companies finish. The cursor
advances past every attempted company and wraps at the end of the registry.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverFlags.limit, "limit", 0, "Maximum companies to attempt (defaults to discovery.batch_limit)")
	discoverCmd.Flags().StringVar(&discoverFlags.maxDuration, "max-duration", "", "Time budget such as 5m (defaults to discovery.max_duration)")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := applyDiscoverFlags(a); err != nil {
		return err
	}

	res, before, after, err := a.discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery batch failed: %w", err)
	}
	a.printer.PrintBatchSummary(res, before, after)
	return nil
}

func applyDiscoverFlags(a *app) error {
	if discoverFlags.limit > 0 {
		a.cfg.Discovery.BatchLimit = discoverFlags.limit
	}
	if discoverFlags.maxDuration != "" {
		d, err := parsePositiveDuration(discoverFlags.maxDuration)
		if err != nil {
			return fmt.Errorf("invalid --max-duration: %w", err)
		}
		a.cfg.Discovery.MaxDuration = d
	}
	return a.cfg.Validate()
}
