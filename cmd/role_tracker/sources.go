package main

import (
	"context"

	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/verify"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Maintain the source registry",
}

var sourcesValidateFlags struct {
	limit  int
	dryRun bool
}

var sourcesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Fetch every active source and deactivate the ones whose board is gone",
	Long: `Checks each active source against its connector. A board that answers
not-found is deactivated so tracking stops polling it; transient failures and
other errors leave the source active. Discovery never deactivates sources,
so this is the only step that does.`,
	RunE: runSourcesValidate,
}

func init() {
	sourcesValidateCmd.Flags().IntVar(&sourcesValidateFlags.limit, "limit", 0, "Maximum sources to check (0 checks all)")
	sourcesValidateCmd.Flags().BoolVar(&sourcesValidateFlags.dryRun, "dry-run", false, "Report verdicts without writing them")

	sourcesCmd.AddCommand(sourcesValidateCmd)
	rootCmd.AddCommand(sourcesCmd)
}

func runSourcesValidate(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.validateSources(cmd.Context(), sourcesValidateFlags.limit, sourcesValidateFlags.dryRun)
	if err != nil {
		return err
	}

	names := make(map[string]string)
	for _, c := range res.Checks {
		if c.Verdict == verify.VerdictLive {
			continue
		}
		if co, err := a.store.GetCompany(cmd.Context(), c.Source.CompanyID); err == nil && co != nil {
			names[co.ID.String()] = co.Name
		}
	}
	a.printer.PrintSourceCheck(res, sourcesValidateFlags.dryRun, names)
	return nil
}

// validateSources runs one validation pass over the active sources.
func (a *app) validateSources(ctx context.Context, limit int, dryRun bool) (verify.Result, error) {
	v := verify.NewValidator(a.store, a.registry, verify.Options{
		Workers: a.cfg.Track.Workers,
		Limit:   limit,
		DryRun:  dryRun,
		Retry:   a.cfg.RetryPolicy(connector.IsTransient),
		Logger:  a.logger.Named("verify"),
	})
	return v.Run(ctx)
}
