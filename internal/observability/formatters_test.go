package observability

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/discovery"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/jonathan/role-tracker/internal/verify"
	"github.com/stretchr/testify/assert"
)

func TestPrintBatchSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintBatchSummary(
		discovery.BatchResult{Attempted: 40, Succeeded: 38, Failed: 2, SourcesFound: 31, BudgetHit: true},
		types.Cursor{Offset: 60},
		types.Cursor{Offset: 0, CompanyCount: 100, Version: 7},
	)
	output := buf.String()

	assert.Contains(t, output, "DISCOVERY BATCH")
	assert.Contains(t, output, "60 -> 0 of 100")
	assert.Contains(t, output, "Attempted: 40")
	assert.Contains(t, output, "time budget reached")
	assert.NotContains(t, output, "Ledger errors")
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	started := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	msg := "failed to apply merge: disk full"
	p.PrintRunSummary(&types.Run{
		ID:         uuid.New(),
		Kind:       types.RunKindTrack,
		Status:     types.RunStatusFailed,
		StartedAt:  started,
		FinishedAt: &finished,
		Counters:   types.RunCounters{Attempted: 5, Succeeded: 4, Failed: 1, New: 12, Closed: 3},
		Error:      &msg,
	})
	output := buf.String()

	assert.Contains(t, output, "TRACK RUN")
	assert.Contains(t, output, "Duration:  1m30s")
	assert.Contains(t, output, "New: 12  Closed: 3")
	assert.Contains(t, output, "disk full")
}

func TestPrintRunSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintRunSummary(nil)
	assert.Empty(t, buf.String())
}

func TestPrintSourceRuns_OnlyFailures(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	acme := uuid.New()
	detail := "greenhouse: permanent fetch failure"
	p.PrintSourceRuns([]types.SourceRun{
		{CompanyID: acme, SourceType: types.SourceLever, Outcome: types.OutcomeSuccess},
		{CompanyID: acme, SourceType: types.SourceGreenhouse, Outcome: types.OutcomeFailure, ErrorDetail: &detail},
	}, map[string]string{acme.String(): "Acme"})
	output := buf.String()

	assert.Contains(t, output, "FAILED SOURCES (1)")
	assert.Contains(t, output, "Acme/greenhouse")
	assert.NotContains(t, output, "lever")
}

func TestPrintPostings_Truncates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var rows []types.ProjectionRow
	for i := 0; i < maxItemsToShow+3; i++ {
		rows = append(rows, types.ProjectionRow{Company: "Acme", Title: fmt.Sprintf("Role %d", i), Location: "Remote"})
	}
	p.PrintPostings("NEW POSTINGS", rows)
	output := buf.String()

	assert.Contains(t, output, fmt.Sprintf("NEW POSTINGS (%d)", len(rows)))
	assert.Contains(t, output, "Acme: Role 0 (Remote)")
	assert.Contains(t, output, "... and 3 more")
	assert.Equal(t, maxItemsToShow, strings.Count(output, "• "))
}

func TestPrintPostings_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintPostings("ACTIVE POSTINGS", nil)
	assert.Contains(t, buf.String(), "(none)")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintSourceCheck(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	gone := uuid.New()
	p.PrintSourceCheck(verify.Result{
		Checked: 3, Live: 1, Deactivated: 1, Unknown: 1,
		Checks: []verify.Check{
			{Source: types.Source{CompanyID: uuid.New(), SourceType: types.SourceLever}, Verdict: verify.VerdictLive},
			{Source: types.Source{CompanyID: gone, SourceType: types.SourceGreenhouse}, Verdict: verify.VerdictGone},
			{Source: types.Source{CompanyID: uuid.New(), SourceType: types.SourceAshby}, Verdict: verify.VerdictUnknown},
		},
	}, true, map[string]string{gone.String(): "Initech"})
	output := buf.String()

	assert.Contains(t, output, "SOURCE VALIDATION")
	assert.Contains(t, output, "Deactivated: 1")
	assert.Contains(t, output, "Initech/greenhouse")
	assert.Contains(t, output, "/ashby")
	assert.NotContains(t, output, "/lever")
	assert.Contains(t, output, "Dry run")
}
