// Package verify checks that registered sources can still be fetched and
// deactivates the ones whose boards are gone. It runs apart from discovery,
// which never deactivates anything.
package verify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/jonathan/role-tracker/internal/retry"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent source checks.
const DefaultWorkers = 4

// SourceStore lists active sources and records the verdicts.
type SourceStore interface {
	ListActiveSources(ctx context.Context) ([]types.Source, error)
	MarkSourceChecked(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error
	DeactivateSource(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error
}

// Fetcher returns a source's current postings. connector.Registry implements it.
type Fetcher interface {
	Fetch(ctx context.Context, src types.Source) ([]types.RawPosting, error)
}

// Verdict is the outcome of checking one source.
type Verdict string

const (
	// VerdictLive means the board answered.
	VerdictLive Verdict = "live"
	// VerdictGone means the board no longer exists; the source is deactivated.
	VerdictGone Verdict = "gone"
	// VerdictUnknown means the check failed for another reason; the source is left alone.
	VerdictUnknown Verdict = "unknown"
)

// Check is the result for one source.
type Check struct {
	Source  types.Source
	Verdict Verdict
	Err     error
}

// Result summarises a validation pass.
type Result struct {
	Checked     int     `json:"checked"`
	Live        int     `json:"live"`
	Deactivated int     `json:"deactivated"`
	Unknown     int     `json:"unknown"`
	Checks      []Check `json:"-"`
}

// Options configures a Validator.
type Options struct {
	Workers int
	Limit   int
	DryRun  bool
	Retry   retry.Policy
	Logger  *zap.Logger
	Clock   func() time.Time
}

// Validator checks sources against their connectors.
type Validator struct {
	sources SourceStore
	fetcher Fetcher
	opts    Options
}

// NewValidator builds a Validator. Zero options take defaults.
func NewValidator(sources SourceStore, fetcher Fetcher, opts Options) *Validator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
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
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Validator{sources: sources, fetcher: fetcher, opts: opts}
}

// Run checks every active source, up to Limit when set. Only a not-found
// answer deactivates a source; transient and other failures leave it active.
// Verdicts are written in source order after all checks settle.
func (v *Validator) Run(ctx context.Context) (Result, error) {
	sources, err := v.sources.ListActiveSources(ctx)
	if err != nil {
		return Result{}, store.IOError(err, "failed to list active sources")
	}
	if v.opts.Limit > 0 && len(sources) > v.opts.Limit {
		sources = sources[:v.opts.Limit]
	}

	checks := v.checkAll(ctx, sources)
	at := v.opts.Clock()

	res := Result{Checks: checks}
	for _, c := range checks {
		res.Checked++
		src := c.Source
		switch c.Verdict {
		case VerdictLive:
			res.Live++
			if !v.opts.DryRun {
				if err := v.sources.MarkSourceChecked(ctx, src.CompanyID, src.SourceType, at); err != nil {
					return res, store.IOError(err, "failed to mark source checked")
				}
			}
		case VerdictGone:
			res.Deactivated++
			v.opts.Logger.Info("deactivating source",
				zap.String(logging.FieldCompanyID, src.CompanyID.String()),
				zap.String(logging.FieldSourceType, string(src.SourceType)),
				zap.Bool("dry_run", v.opts.DryRun),
				zap.Error(c.Err),
			)
			if !v.opts.DryRun {
				if err := v.sources.DeactivateSource(ctx, src.CompanyID, src.SourceType, at); err != nil {
					return res, store.IOError(err, "failed to deactivate source")
				}
			}
		default:
			res.Unknown++
			v.opts.Logger.Warn("source check inconclusive",
				zap.String(logging.FieldCompanyID, src.CompanyID.String()),
				zap.String(logging.FieldSourceType, string(src.SourceType)),
				zap.Error(c.Err),
			)
		}
	}
	return res, nil
}

func (v *Validator) checkAll(ctx context.Context, sources []types.Source) []Check {
	checks := make([]Check, len(sources))
	sem := semaphore.NewWeighted(int64(v.opts.Workers))
	g, gctx := errgroup.WithContext(ctx)

	for i := range sources {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(sources); j++ {
				checks[j] = Check{Source: sources[j], Verdict: VerdictUnknown, Err: err}
			}
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			_, err := v.opts.Retry.Do(gctx, func(actx context.Context) error {
				_, err := v.fetcher.Fetch(actx, sources[i])
				return err
			})
			checks[i] = Check{Source: sources[i], Verdict: verdictOf(err), Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return checks
}

func verdictOf(err error) Verdict {
	switch {
	case err == nil:
		return VerdictLive
	case connector.IsNotFound(err):
		return VerdictGone
	default:
		return VerdictUnknown
	}
}
