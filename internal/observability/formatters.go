// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/role-tracker/internal/discovery"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/jonathan/role-tracker/internal/verify"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 10
)

// Printer handles formatted output for CLI summaries
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintBatchSummary outputs the result of one discovery batch.
func (p *Printer) PrintBatchSummary(res discovery.BatchResult, before, after types.Cursor) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Cursor:    %d -> %d of %d\n", before.Offset, after.Offset, after.CompanyCount))
	sb.WriteString(fmt.Sprintf("Attempted: %d\n", res.Attempted))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", res.Succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", res.Failed))
	sb.WriteString(fmt.Sprintf("Sources:   %d found\n", res.SourcesFound))
	if res.BudgetHit {
		sb.WriteString("Stopped early: time budget reached\n")
	}
	if res.LedgerErrors > 0 {
		sb.WriteString(fmt.Sprintf("Ledger errors: %d\n", res.LedgerErrors))
	}

	p.printBox("DISCOVERY BATCH", sb.String())
}

// PrintSourceCheck prints a source validation pass and the sources it
// deactivated or could not decide on.
func (p *Printer) PrintSourceCheck(res verify.Result, dryRun bool, companyNames map[string]string) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Checked:     %d\n", res.Checked))
	sb.WriteString(fmt.Sprintf("Live:        %d\n", res.Live))
	sb.WriteString(fmt.Sprintf("Deactivated: %d\n", res.Deactivated))
	sb.WriteString(fmt.Sprintf("Unknown:     %d\n", res.Unknown))
	if dryRun {
		sb.WriteString("Dry run: nothing was written\n")
	}

	shown := 0
	for _, c := range res.Checks {
		if c.Verdict == verify.VerdictLive {
			continue
		}
		if shown == maxItemsToShow {
			sb.WriteString("  ...\n")
			break
		}
		name := companyNames[c.Source.CompanyID.String()]
		if name == "" {
			name = c.Source.CompanyID.String()
		}
		sb.WriteString(fmt.Sprintf("  %-7s %s/%s\n", c.Verdict, name, c.Source.SourceType))
		shown++
	}

	p.printBox("SOURCE VALIDATION", sb.String())
}

// PrintRunSummary outputs a run record.
func (p *Printer) PrintRunSummary(run *types.Run) {
	if run == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Run:       %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Kind:      %s\n", run.Kind))
	sb.WriteString(fmt.Sprintf("Status:    %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Started:   %s\n", run.StartedAt.Format(time.RFC3339)))
	if run.FinishedAt != nil {
		sb.WriteString(fmt.Sprintf("Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)))
	}
	sb.WriteString("\n")
	c := run.Counters
	sb.WriteString(fmt.Sprintf("Attempted: %d  Succeeded: %d  Failed: %d\n", c.Attempted, c.Succeeded, c.Failed))
	sb.WriteString(fmt.Sprintf("New: %d  Closed: %d\n", c.New, c.Closed))
	if run.Error != nil {
		sb.WriteString(fmt.Sprintf("\nError: %s\n", *run.Error))
	}

	p.printBox(strings.ToUpper(string(run.Kind))+" RUN", sb.String())
}

// PrintSourceRuns lists the failed attempts of a run.
func (p *Printer) PrintSourceRuns(srs []types.SourceRun, companyNames map[string]string) {
	var failed []types.SourceRun
	for _, sr := range srs {
		if sr.Outcome == types.OutcomeFailure {
			failed = append(failed, sr)
		}
	}
	if len(failed) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(failed), maxItemsToShow)
	for i := 0; i < count; i++ {
		sr := failed[i]
		name := companyNames[sr.CompanyID.String()]
		if name == "" {
			name = sr.CompanyID.String()[:8]
		}
		detail := ""
		if sr.ErrorDetail != nil {
			detail = *sr.ErrorDetail
		}
		sb.WriteString(fmt.Sprintf("• %s/%s: %s\n", name, sr.SourceType, detail))
	}
	if len(failed) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(failed)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("FAILED SOURCES (%d)", len(failed)), sb.String())
}

// PrintPostings outputs projection rows under title.
func (p *Printer) PrintPostings(title string, rows []types.ProjectionRow) {
	var sb strings.Builder
	if len(rows) == 0 {
		sb.WriteString("(none)\n")
	}

	count := min(len(rows), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := rows[i]
		sb.WriteString(fmt.Sprintf("• %s: %s", r.Company, r.Title))
		if r.Location != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Location))
		}
		sb.WriteString("\n")
	}
	if len(rows) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(rows)-maxItemsToShow))
	}

	p.printBox(fmt.Sprintf("%s (%d)", title, len(rows)), sb.String())
}

// PrintCursor outputs the discovery cursor.
func (p *Printer) PrintCursor(c types.Cursor) {
	content := fmt.Sprintf("Offset:    %d\nCompanies: %d\nVersion:   %d\n", c.Offset, c.CompanyCount, c.Version)
	p.printBox("DISCOVERY CURSOR", content)
}
