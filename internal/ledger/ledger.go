// Package ledger records every run and every (company, source) attempt inside
// it. Records are append-only; a run's terminal fields are written once.
package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
)

// Ledger writes run telemetry through a store.Runs backend.
type Ledger struct {
	runs store.Runs
	now  func() time.Time
}

// New returns a Ledger over runs. Times are truncated to microseconds so they
// survive a round trip through Postgres unchanged.
func New(runs store.Runs) *Ledger {
	return &Ledger{runs: runs, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// WithClock returns a copy of l that stamps times with now.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	c := *l
	c.now = now
	return &c
}

// StartRun appends a running Run record.
func (l *Ledger) StartRun(ctx context.Context, kind types.RunKind) (*types.Run, error) {
	run := types.Run{
		ID:        uuid.New(),
		Kind:      kind,
		StartedAt: l.now(),
		Status:    types.RunStatusRunning,
	}
	if err := l.runs.CreateRun(ctx, run); err != nil {
		return nil, store.IOError(err, "failed to start run")
	}
	return &run, nil
}

// RecordSourceRun appends one attempt record. ID and FinishedAt are filled
// in when zero.
func (l *Ledger) RecordSourceRun(ctx context.Context, sr types.SourceRun) error {
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	if sr.FinishedAt.IsZero() {
		sr.FinishedAt = l.now()
	}
	if sr.StartedAt.IsZero() {
		sr.StartedAt = sr.FinishedAt
	}
	if err := l.runs.InsertSourceRun(ctx, sr); err != nil {
		return store.IOError(err, "failed to record source run")
	}
	return nil
}

// FinishRun sets the terminal status and counters. Finishing twice returns
// types.ErrRunFinished.
func (l *Ledger) FinishRun(ctx context.Context, run *types.Run, status string, counters types.RunCounters, runErr error) error {
	finished := *run
	at := l.now()
	finished.FinishedAt = &at
	finished.Status = status
	finished.Counters = counters
	if runErr != nil {
		msg := runErr.Error()
		finished.Error = &msg
	}

	if err := l.runs.FinishRun(ctx, finished); err != nil {
		if errors.Is(err, types.ErrRunFinished) || errors.Is(err, types.ErrRunNotFound) {
			return err
		}
		return store.IOError(err, "failed to finish run")
	}

	*run = finished
	return nil
}

// GetRun returns nil when id is unknown.
func (l *Ledger) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	run, err := l.runs.GetRun(ctx, id)
	if err != nil {
		return nil, store.IOError(err, "failed to get run")
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	runs, err := l.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, store.IOError(err, "failed to list runs")
	}
	return runs, nil
}

// LatestFinishedRun returns the newest finished run of kind, or nil.
func (l *Ledger) LatestFinishedRun(ctx context.Context, kind types.RunKind) (*types.Run, error) {
	run, err := l.runs.LatestFinishedRun(ctx, kind)
	if err != nil {
		return nil, store.IOError(err, "failed to get latest run")
	}
	return run, nil
}

// ListSourceRuns returns the attempts recorded under runID.
func (l *Ledger) ListSourceRuns(ctx context.Context, runID uuid.UUID) ([]types.SourceRun, error) {
	srs, err := l.runs.ListSourceRuns(ctx, runID)
	if err != nil {
		return nil, store.IOError(err, "failed to list source runs")
	}
	return srs, nil
}
