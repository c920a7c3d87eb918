// Command seed_companies loads a YAML list of companies into the registry.
//
// Usage:
//
//	go run ./cmd/tools/seed_companies companies.yaml
//
// The file looks like:
//
//	companies:
//	  - name: Stripe
//	    careers_url: https://boards.greenhouse.io/stripe
//	    domain: stripe.com
//	    priority: 10
//
// Companies are matched by normalized name, so re-running the seed is safe.
// Requires DATABASE_URL environment variable to be set.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonathan/role-tracker/internal/db"
	"github.com/jonathan/role-tracker/internal/store"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: seed_companies <companies.yaml>")
		os.Exit(2)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "ERROR: DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	entries, err := parseSeed(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Company Seed ===")
	fmt.Println()
	summary := seed(ctx, database, entries, os.Stdout)

	fmt.Println()
	fmt.Println("=== Seed Summary ===")
	fmt.Printf("  Created: %d\n", summary.created)
	fmt.Printf("  Existing: %d\n", summary.existing)
	fmt.Printf("  Failed: %d\n", summary.failed)
	fmt.Printf("  Total: %d\n", len(entries))

	if summary.failed > 0 {
		os.Exit(1)
	}
}

type seedSummary struct {
	created  int
	existing int
	failed   int
}

// seed registers every entry. A company counts as created when the registry
// grew while adding it.
func seed(ctx context.Context, companies store.Companies, entries []seedEntry, out io.Writer) seedSummary {
	var s seedSummary
	for _, e := range entries {
		before, err := companies.CountCompanies(ctx)
		if err != nil {
			fmt.Fprintf(out, "  ✗ %s: %v\n", e.Name, err)
			s.failed++
			continue
		}

		c, err := companies.FindOrCreateCompany(ctx, e.company())
		if err != nil {
			fmt.Fprintf(out, "  ✗ %s: %v\n", e.Name, err)
			s.failed++
			continue
		}

		after, err := companies.CountCompanies(ctx)
		if err == nil && after > before {
			fmt.Fprintf(out, "  ✓ Created: %s (normalized: %s)\n", c.Name, c.NameNormalized)
			s.created++
		} else {
			fmt.Fprintf(out, "  • Existing: %s (ID: %s)\n", c.Name, c.ID)
			s.existing++
		}
	}
	return s
}
