package main

import (
	"context"

	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/spf13/cobra"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or reset the discovery cursor",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted discovery cursor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.store.LoadCursor(cmd.Context())
		if err != nil {
			return err
		}
		a.printer.PrintCursor(c)
		return nil
	},
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move the discovery cursor back to the first company",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.resetCursor(cmd.Context())
		if err != nil {
			return err
		}
		a.printer.PrintCursor(c)
		return nil
	},
}

func init() {
	cursorCmd.AddCommand(cursorShowCmd, cursorResetCmd)
	rootCmd.AddCommand(cursorCmd)
}

// resetCursor saves offset 0 as the next cursor version.
func (a *app) resetCursor(ctx context.Context) (types.Cursor, error) {
	cur, err := a.store.LoadCursor(ctx)
	if err != nil {
		return cur, store.IOError(err, "failed to load cursor")
	}
	count, err := a.store.CountCompanies(ctx)
	if err != nil {
		return cur, store.IOError(err, "failed to count companies")
	}

	next := types.Cursor{Offset: 0, CompanyCount: count, Version: cur.Version + 1}
	if err := a.store.SaveCursor(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}
