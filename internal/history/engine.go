// Package history folds each successful connector fetch into the posting
// history and derives the new/active projections from it.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/identity"
	"github.com/jonathan/role-tracker/internal/lock"
	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"go.uber.org/zap"
)

// Store is the posting persistence the engine needs. ApplyMerge must write
// all changed postings for one company atomically.
type Store interface {
	ListCompanyPostings(ctx context.Context, companyID uuid.UUID) ([]types.Posting, error)
	ApplyMerge(ctx context.Context, companyID uuid.UUID, changed []types.Posting) error
}

// MergeInput is one (company, source) fetch result to fold into history.
type MergeInput struct {
	CompanyID  uuid.UUID
	SourceType types.SourceType
	BaseURL    string
	Outcome    types.FetchOutcome
	Postings   []types.RawPosting
	RunAt      time.Time
}

// MergeResult counts what one merge did.
type MergeResult struct {
	New     int `json:"new"`
	Renewed int `json:"renewed"`
	Closed  int `json:"closed"`
	Skipped int `json:"skipped"`
}

// Engine is the single logical writer of posting history. Merges in one
// process queue on a local lock; WithLocker adds a lock shared across
// processes, taken after the local one.
type Engine struct {
	store  Store
	local  lock.Locker
	locker lock.Locker
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker adds a cross-process lock taken around every merge.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine over s.
func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{store: s, local: lock.NewLocal(), logger: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MergeRun folds one fetch into history. A Failure outcome changes nothing.
// Errors returned are always marked store.ErrStoreIO.
func (e *Engine) MergeRun(ctx context.Context, in MergeInput) (MergeResult, error) {
	if in.Outcome != types.OutcomeSuccess {
		return MergeResult{}, nil
	}

	for _, l := range []lock.Locker{e.local, e.locker} {
		if l == nil {
			continue
		}
		release, err := l.Acquire(ctx)
		if err != nil {
			return MergeResult{}, store.IOError(err, "failed to acquire merge lock")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("merge lock release failed", zap.Error(err))
			}
		}()
	}

	existing, err := e.store.ListCompanyPostings(ctx, in.CompanyID)
	if err != nil {
		return MergeResult{}, store.IOError(err, "failed to load postings")
	}

	changed, result := Plan(existing, in)

	if len(changed) > 0 {
		if err := e.store.ApplyMerge(ctx, in.CompanyID, changed); err != nil {
			return MergeResult{}, store.IOError(err, "failed to apply merge")
		}
	}

	e.logger.Debug("merged source",
		zap.String(logging.FieldCompanyID, in.CompanyID.String()),
		zap.String(logging.FieldSourceType, string(in.SourceType)),
		zap.Int("new", result.New),
		zap.Int("renewed", result.Renewed),
		zap.Int("closed", result.Closed),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

// Plan computes the postings that change when in is folded into existing.
// It does not mutate existing.
func Plan(existing []types.Posting, in MergeInput) ([]types.Posting, MergeResult) {
	var result MergeResult
	if in.Outcome != types.OutcomeSuccess {
		return nil, result
	}

	byKey := make(map[string]types.Posting, len(existing))
	for _, p := range existing {
		byKey[p.Key] = p
	}

	rc := identity.Context{CompanyID: in.CompanyID, SourceType: in.SourceType, BaseURL: in.BaseURL}
	fetched := make(map[string]bool, len(in.Postings))
	changed := make(map[string]types.Posting)
	var order []string

	for _, raw := range in.Postings {
		id, err := identity.Resolve(raw, rc)
		if err != nil {
			result.Skipped++
			continue
		}
		if fetched[id.Key] {
			continue
		}
		fetched[id.Key] = true

		p, ok := byKey[id.Key]
		if ok {
			p = p.Clone()
			renew(&p, raw, id, in)
			result.Renewed++
		} else {
			p = create(raw, id, in)
			result.New++
		}
		changed[p.Key] = p
		order = append(order, p.Key)
	}

	for _, p := range existing {
		if fetched[p.Key] || !types.ContainsSourceType(p.SourcesSeen, in.SourceType) {
			continue
		}
		p = p.Clone()
		p.SourcesSeen = types.RemoveSourceType(p.SourcesSeen, in.SourceType)
		if len(p.SourcesSeen) == 0 {
			closedAt := laterOf(in.RunAt, p.LastSeenAt)
			p.Status = types.PostingClosed
			p.ClosedAt = &closedAt
			result.Closed++
		}
		changed[p.Key] = p
		order = append(order, p.Key)
	}

	out := make([]types.Posting, 0, len(order))
	for _, k := range order {
		out = append(out, changed[k])
	}
	return out, result
}

func create(raw types.RawPosting, id identity.Identity, in MergeInput) types.Posting {
	p := types.Posting{
		Key:         id.Key,
		CompanyID:   in.CompanyID,
		Origins:     []types.SourceType{in.SourceType},
		SourcesSeen: []types.SourceType{in.SourceType},
		FirstSeenAt: in.RunAt,
		LastSeenAt:  in.RunAt,
		Status:      types.PostingActive,
	}
	refresh(&p, raw, id)
	return p
}

func renew(p *types.Posting, raw types.RawPosting, id identity.Identity, in MergeInput) {
	p.LastSeenAt = laterOf(p.LastSeenAt, in.RunAt)
	p.Status = types.PostingActive
	p.ClosedAt = nil
	p.SourcesSeen = types.AddSourceType(p.SourcesSeen, in.SourceType)
	p.Origins = types.AddSourceType(p.Origins, in.SourceType)
	refresh(p, raw, id)
}

// refresh copies display fields from the latest observation. A blank title
// or apply URL keeps the value already known.
func refresh(p *types.Posting, raw types.RawPosting, id identity.Identity) {
	if raw.Title != "" {
		p.Title = raw.Title
	}
	p.Location = raw.Location
	if raw.ApplyURL != "" {
		p.ApplyURL = raw.ApplyURL
	}
	if id.CanonicalURL != "" {
		p.CanonicalApplyURL = id.CanonicalURL
	}
	if raw.PostedAt != nil {
		v := *raw.PostedAt
		p.PostedAt = &v
	}
	if raw.SourceJobID != nil && p.SourceJobID == nil {
		v := *raw.SourceJobID
		p.SourceJobID = &v
	}
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
