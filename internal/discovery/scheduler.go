// Package discovery walks the company registry in bounded batches, finds each
// company's ATS sources and records them. The scan position is an explicit
// cursor passed in and handed back, so the caller owns its persistence.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/ledger"
	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/jonathan/role-tracker/internal/retry"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Defaults for a discovery batch.
const (
	DefaultWorkers       = 3
	DefaultBatchLimit    = 100
	DefaultMaxDuration   = 8 * time.Minute
	DefaultProgressEvery = 20
)

// CompanyLister reads the ordered registry.
type CompanyLister interface {
	CountCompanies(ctx context.Context) (int, error)
	ListCompaniesRange(ctx context.Context, offset, limit int) ([]types.Company, error)
}

// SourceWriter persists discovered sources.
type SourceWriter interface {
	UpsertSource(ctx context.Context, src types.Source) error
	ListSources(ctx context.Context, companyID uuid.UUID) ([]types.Source, error)
}

// Progress is emitted every ProgressEvery settled companies.
type Progress struct {
	Done      int
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// BatchResult summarizes one batch.
type BatchResult struct {
	RunID        uuid.UUID `json:"run_id"`
	Attempted    int       `json:"attempted"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	SourcesFound int       `json:"sources_found"`
	BudgetHit    bool      `json:"budget_hit"`
	LedgerErrors int       `json:"ledger_errors,omitempty"`
}

// Config tunes the scheduler.
type Config struct {
	Workers       int
	ProgressEvery int
	Retry         retry.Policy
	OnProgress    func(Progress)
}

// Scheduler runs discovery batches.
type Scheduler struct {
	companies  CompanyLister
	sources    SourceWriter
	discoverer Discoverer
	ledger     *ledger.Ledger
	cfg        Config
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLedger records a discovery Run and one SourceRun per attempted company.
func WithLedger(l *ledger.Ledger) Option {
	return func(s *Scheduler) { s.ledger = l }
}

// WithClock replaces the wall clock used for the time budget.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler builds a Scheduler. Zero config values take the defaults.
func NewScheduler(companies CompanyLister, sources SourceWriter, d Discoverer, cfg Config, opts ...Option) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.DefaultPolicy(connector.IsTransient)
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = connector.IsTransient
	}

	s := &Scheduler{
		companies:  companies,
		sources:    sources,
		discoverer: d,
		cfg:        cfg,
		now:        time.Now,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type attemptResult struct {
	sources  []types.Source
	err      error
	attempts int
	started  time.Time
	finished time.Time
}

// RunBatch attempts up to limit companies starting at cursor, dispatching a
// company only while elapsed time is under maxDuration (zero means no
// budget). In-flight attempts always settle. The returned cursor has advanced
// past every attempted company and wraps to 0 at the end of the registry;
// the caller persists it. On error the input cursor is returned unchanged.
func (s *Scheduler) RunBatch(ctx context.Context, cursor types.Cursor, limit int, maxDuration time.Duration) (BatchResult, types.Cursor, error) {
	start := s.now()

	total, err := s.companies.CountCompanies(ctx)
	if err != nil {
		return BatchResult{}, cursor, store.IOError(err, "failed to count companies")
	}
	cur := cursor.Normalize(total)

	var companies []types.Company
	if total > 0 && limit > 0 {
		companies, err = s.companies.ListCompaniesRange(ctx, cur.Offset, min(limit, total-cur.Offset))
		if err != nil {
			return BatchResult{}, cursor, store.IOError(err, "failed to list companies")
		}
	}

	var run *types.Run
	if s.ledger != nil {
		run, err = s.ledger.StartRun(ctx, types.RunKindDiscovery)
		if err != nil {
			return BatchResult{}, cursor, err
		}
	}

	policy := s.cfg.Retry.ClampTimeout(maxDuration)
	results := make([]attemptResult, len(companies))
	dispatched, budgetHit := s.dispatch(ctx, companies, results, policy, start, maxDuration)

	result := BatchResult{Attempted: dispatched, BudgetHit: budgetHit}
	if run != nil {
		result.RunID = run.ID
	}

	for i := 0; i < dispatched; i++ {
		c, r := companies[i], results[i]
		if r.err != nil {
			result.Failed++
			s.logger.Warn("discovery failed",
				zap.String(logging.FieldCompany, c.Name),
				zap.Int(logging.FieldAttempt, r.attempts),
				zap.Error(r.err),
			)
		} else {
			result.Succeeded++
			n, err := s.applySources(ctx, c, r.sources)
			if err != nil {
				return s.abort(ctx, run, result, cursor, err)
			}
			result.SourcesFound += n
		}

		if run != nil {
			if err := s.ledger.RecordSourceRun(ctx, sourceRun(run.ID, c, r)); err != nil {
				result.LedgerErrors++
				s.logger.Warn("failed to record discovery attempt",
					zap.String(logging.FieldCompany, c.Name),
					zap.Error(err),
				)
			}
		}
	}

	if run != nil {
		counters := types.RunCounters{Attempted: result.Attempted, Succeeded: result.Succeeded, Failed: result.Failed}
		if err := s.ledger.FinishRun(ctx, run, types.RunStatusCompleted, counters, nil); err != nil {
			return BatchResult{}, cursor, err
		}
	}

	next := cur.Advance(dispatched)
	s.logger.Info("discovery batch complete",
		zap.Int(logging.FieldOffset, cur.Offset),
		zap.Int("next_offset", next.Offset),
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("sources_found", result.SourcesFound),
		zap.Bool("budget_hit", result.BudgetHit),
		zap.Int64(logging.FieldDurationMS, s.now().Sub(start).Milliseconds()),
	)
	return result, next, nil
}

// dispatch runs companies in order through the worker pool and returns how
// many were started. It stops at the first company that cannot start within
// the budget, so the started set is always a prefix.
func (s *Scheduler) dispatch(ctx context.Context, companies []types.Company, results []attemptResult, policy retry.Policy, start time.Time, maxDuration time.Duration) (int, bool) {
	sem := semaphore.NewWeighted(int64(s.cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var progress Progress
	progress.Total = len(companies)

	dispatched := 0
	budgetHit := false
	for i := range companies {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if maxDuration > 0 && s.now().Sub(start) >= maxDuration {
			sem.Release(1)
			budgetHit = true
			break
		}
		dispatched++

		g.Go(func() error {
			defer sem.Release(1)

			r := attemptResult{started: s.now()}
			r.attempts, r.err = policy.Do(gctx, func(actx context.Context) error {
				found, err := s.discoverer.Discover(actx, companies[i])
				r.sources = found
				return err
			})
			if r.err != nil {
				r.sources = nil
			}
			r.finished = s.now()
			results[i] = r

			mu.Lock()
			defer mu.Unlock()
			progress.Done++
			if r.err != nil {
				progress.Failed++
			} else {
				progress.Succeeded++
			}
			if progress.Done%s.cfg.ProgressEvery == 0 {
				progress.Elapsed = s.now().Sub(start)
				s.emitProgress(progress)
			}
			return nil
		})
	}

	_ = g.Wait()
	return dispatched, budgetHit
}

func (s *Scheduler) emitProgress(p Progress) {
	s.logger.Info("discovery progress",
		zap.Int("done", p.Done),
		zap.Int("total", p.Total),
		zap.Int("succeeded", p.Succeeded),
		zap.Int("failed", p.Failed),
	)
	if s.cfg.OnProgress != nil {
		s.cfg.OnProgress(p)
	}
}

// applySources upserts found sources. Existing sources keep their active
// flag; discovery never deactivates anything.
func (s *Scheduler) applySources(ctx context.Context, c types.Company, found []types.Source) (int, error) {
	if len(found) == 0 {
		return 0, nil
	}

	existing, err := s.sources.ListSources(ctx, c.ID)
	if err != nil {
		return 0, store.IOError(err, "failed to list sources")
	}
	byType := make(map[types.SourceType]types.Source, len(existing))
	for _, src := range existing {
		byType[src.SourceType] = src
	}

	for _, src := range found {
		src.CompanyID = c.ID
		if prev, ok := byType[src.SourceType]; ok {
			src.IsActive = prev.IsActive
			src.LastCheckedAt = prev.LastCheckedAt
		} else {
			src.IsActive = true
		}
		if err := s.sources.UpsertSource(ctx, src); err != nil {
			return 0, store.IOError(err, "failed to upsert source")
		}
	}
	return len(found), nil
}

func (s *Scheduler) abort(ctx context.Context, run *types.Run, result BatchResult, cursor types.Cursor, cause error) (BatchResult, types.Cursor, error) {
	if run != nil {
		counters := types.RunCounters{Attempted: result.Attempted, Succeeded: result.Succeeded, Failed: result.Failed}
		if err := s.ledger.FinishRun(context.WithoutCancel(ctx), run, types.RunStatusFailed, counters, cause); err != nil {
			s.logger.Error("failed to mark discovery run failed", zap.Error(err))
		}
	}
	return result, cursor, cause
}

func sourceRun(runID uuid.UUID, c types.Company, r attemptResult) types.SourceRun {
	sr := types.SourceRun{
		RunID:        runID,
		CompanyID:    c.ID,
		SourceType:   types.SourceDiscovery,
		Outcome:      types.OutcomeFromError(r.err),
		PostingCount: len(r.sources),
		StartedAt:    r.started,
		FinishedAt:   r.finished,
	}
	if r.err != nil {
		msg := r.err.Error()
		sr.ErrorDetail = &msg
	}
	return sr
}
