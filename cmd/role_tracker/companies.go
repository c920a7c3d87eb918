package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jonathan/role-tracker/internal/types"
	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage the company registry",
}

var companyAddFlags struct {
	careersURL string
	domain     string
	priority   int
}

var companiesAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a company to the registry (idempotent by normalized name)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompaniesAdd,
}

var companyListFlags struct {
	limit  int
	offset int
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List companies in registry order with their sources",
	RunE:  runCompaniesList,
}

func init() {
	companiesAddCmd.Flags().StringVar(&companyAddFlags.careersURL, "careers-url", "", "Careers page or ATS board URL")
	companiesAddCmd.Flags().StringVar(&companyAddFlags.domain, "domain", "", "Company web domain")
	companiesAddCmd.Flags().IntVar(&companyAddFlags.priority, "priority", 0, "Priority (higher first in reports)")

	companiesListCmd.Flags().IntVar(&companyListFlags.limit, "limit", 50, "Maximum companies to list")
	companiesListCmd.Flags().IntVar(&companyListFlags.offset, "offset", 0, "Registry position to start at")

	companiesCmd.AddCommand(companiesAddCmd, companiesListCmd)
	rootCmd.AddCommand(companiesCmd)
}

func runCompaniesAdd(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	name := strings.TrimSpace(args[0])
	if types.NormalizeName(name) == "" {
		return fmt.Errorf("company name %q has no letters or digits", name)
	}
	c := types.Company{Name: name, Priority: companyAddFlags.priority}
	if companyAddFlags.careersURL != "" {
		c.CareersURL = &companyAddFlags.careersURL
	}
	if companyAddFlags.domain != "" {
		c.Domain = &companyAddFlags.domain
	}

	got, err := a.store.FindOrCreateCompany(cmd.Context(), c)
	if err != nil {
		return fmt.Errorf("failed to add company: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t(position %d)\n", got.ID, got.Name, got.Position)
	return nil
}

func runCompaniesList(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	total, err := a.store.CountCompanies(ctx)
	if err != nil {
		return err
	}
	companies, err := a.store.ListCompaniesRange(ctx, companyListFlags.offset, companyListFlags.limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tSOURCES")
	for i, c := range companies {
		sources, err := a.store.ListSources(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", companyListFlags.offset+i, c.Name, describeSources(sources))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d companies\n", len(companies), total)
	return nil
}

func describeSources(sources []types.Source) string {
	if len(sources) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(sources))
	for _, s := range sources {
		p := string(s.SourceType) + ":" + s.Token
		if !s.IsActive {
			p += " (inactive)"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}
