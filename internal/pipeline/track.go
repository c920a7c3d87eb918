// Package pipeline provides the high-level orchestration of a tracking run:
// fetch every active source, fold the results into posting history and record
// the run in the ledger.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/history"
	"github.com/jonathan/role-tracker/internal/ledger"
	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/jonathan/role-tracker/internal/retry"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Progress steps.
const (
	StepFetch = "fetch"
	StepMerge = "merge"
	StepDone  = "done"
)

// DefaultWorkers bounds concurrent source fetches.
const DefaultWorkers = 4

// ProgressEvent represents a progress update during a tracking run
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when tracking progress occurs
type ProgressCallback func(event ProgressEvent)

// SourceStore lists the sources to poll and stamps them once checked.
type SourceStore interface {
	ListActiveSources(ctx context.Context) ([]types.Source, error)
	MarkSourceChecked(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error
}

// Fetcher returns a source's current postings. connector.Registry implements it.
type Fetcher interface {
	Fetch(ctx context.Context, src types.Source) ([]types.RawPosting, error)
}

// Merger folds one fetch into posting history. history.Engine implements it.
type Merger interface {
	MergeRun(ctx context.Context, in history.MergeInput) (history.MergeResult, error)
}

// Options holds configuration for a Tracker
type Options struct {
	Workers       int
	ProgressEvery int
	Retry         retry.Policy
	OnProgress    ProgressCallback
	Logger        *zap.Logger
}

// Tracker runs tracking passes.
type Tracker struct {
	sources SourceStore
	fetcher Fetcher
	merger  Merger
	ledger  *ledger.Ledger
	opts    Options
}

// NewTracker builds a Tracker. Zero options take defaults.
func NewTracker(sources SourceStore, fetcher Fetcher, merger Merger, l *ledger.Ledger, opts Options) *Tracker {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.DefaultPolicy(connector.IsTransient)
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = connector.IsTransient
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Tracker{sources: sources, fetcher: fetcher, merger: merger, ledger: l, opts: opts}
}

type fetchResult struct {
	postings []types.RawPosting
	err      error
	attempts int
	started  time.Time
	finished time.Time
}

// Run performs one tracking pass. Every merge in the pass uses the run's start
// time, so postings first seen in this run share first_seen_at == StartedAt.
// A store failure aborts the pass; the run is recorded as failed and returned
// together with the error. Fetch failures are counted, never fatal.
func (t *Tracker) Run(ctx context.Context) (*types.Run, error) {
	run, err := t.ledger.StartRun(ctx, types.RunKindTrack)
	if err != nil {
		return nil, err
	}
	runAt := run.StartedAt
	logger := t.opts.Logger.With(zap.String(logging.FieldRunID, run.ID.String()))

	sources, err := t.sources.ListActiveSources(ctx)
	if err != nil {
		return t.abort(ctx, run, types.RunCounters{}, store.IOError(err, "failed to list active sources"))
	}

	t.emit(ProgressEvent{Step: StepFetch, Message: "fetching active sources", RunID: run.ID.String(), Total: len(sources)})
	results := t.fetchAll(ctx, run, sources)

	var counters types.RunCounters
	for i, src := range sources {
		r := results[i]
		outcome := types.OutcomeFromError(r.err)

		mr, err := t.merger.MergeRun(ctx, history.MergeInput{
			CompanyID:  src.CompanyID,
			SourceType: src.SourceType,
			BaseURL:    src.CareersURL,
			Outcome:    outcome,
			Postings:   r.postings,
			RunAt:      runAt,
		})
		if err != nil {
			return t.abort(ctx, run, counters, err)
		}

		counters.Attempted++
		if outcome == types.OutcomeSuccess {
			counters.Succeeded++
			if err := t.sources.MarkSourceChecked(ctx, src.CompanyID, src.SourceType, runAt); err != nil {
				return t.abort(ctx, run, counters, store.IOError(err, "failed to mark source checked"))
			}
		} else {
			counters.Failed++
			logger.Warn("source fetch failed",
				zap.String(logging.FieldCompanyID, src.CompanyID.String()),
				zap.String(logging.FieldSourceType, string(src.SourceType)),
				zap.Int(logging.FieldAttempt, r.attempts),
				zap.Error(r.err),
			)
		}
		counters.New += mr.New
		counters.Closed += mr.Closed

		if err := t.ledger.RecordSourceRun(ctx, sourceRun(run.ID, src, r, mr)); err != nil {
			logger.Warn("failed to record source run", zap.Error(err))
		}
	}

	if err := t.ledger.FinishRun(ctx, run, types.RunStatusCompleted, counters, nil); err != nil {
		return run, err
	}

	t.emit(ProgressEvent{Step: StepDone, Message: "tracking run complete", RunID: run.ID.String(),
		Done: counters.Attempted, Total: len(sources), Content: counters})
	logger.Info("tracking run complete",
		zap.Int("attempted", counters.Attempted),
		zap.Int("succeeded", counters.Succeeded),
		zap.Int("failed", counters.Failed),
		zap.Int("new", counters.New),
		zap.Int("closed", counters.Closed),
	)
	return run, nil
}

// fetchAll fetches every source through the worker pool. Results are indexed
// like sources so merging can happen in a fixed order.
func (t *Tracker) fetchAll(ctx context.Context, run *types.Run, sources []types.Source) []fetchResult {
	results := make([]fetchResult, len(sources))
	sem := semaphore.NewWeighted(int64(t.opts.Workers))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	done := 0

	for i := range sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Unstarted sources count as failed fetches.
			for j := i; j < len(sources); j++ {
				results[j] = fetchResult{err: err}
			}
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			r := fetchResult{started: time.Now().UTC()}
			r.attempts, r.err = t.opts.Retry.Do(gctx, func(actx context.Context) error {
				postings, err := t.fetcher.Fetch(actx, sources[i])
				r.postings = postings
				return err
			})
			if r.err != nil {
				r.postings = nil
			}
			r.finished = time.Now().UTC()
			results[i] = r

			mu.Lock()
			defer mu.Unlock()
			done++
			if done%t.opts.ProgressEvery == 0 || done == len(sources) {
				t.emit(ProgressEvent{Step: StepFetch, Message: "fetched sources", RunID: run.ID.String(),
					Done: done, Total: len(sources)})
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (t *Tracker) emit(ev ProgressEvent) {
	if t.opts.OnProgress != nil {
		t.opts.OnProgress(ev)
	}
}

func (t *Tracker) abort(ctx context.Context, run *types.Run, counters types.RunCounters, cause error) (*types.Run, error) {
	if err := t.ledger.FinishRun(context.WithoutCancel(ctx), run, types.RunStatusFailed, counters, cause); err != nil {
		t.opts.Logger.Error("failed to mark tracking run failed", zap.Error(err))
	}
	return run, cause
}

func sourceRun(runID uuid.UUID, src types.Source, r fetchResult, mr history.MergeResult) types.SourceRun {
	sr := types.SourceRun{
		RunID:        runID,
		CompanyID:    src.CompanyID,
		SourceType:   src.SourceType,
		Outcome:      types.OutcomeFromError(r.err),
		PostingCount: len(r.postings),
		NewCount:     mr.New,
		ClosedCount:  mr.Closed,
		StartedAt:    r.started,
		FinishedAt:   r.finished,
	}
	if r.err != nil {
		msg := r.err.Error()
		sr.ErrorDetail = &msg
	}
	return sr
}
