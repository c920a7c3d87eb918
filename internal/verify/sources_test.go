package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/retry"
	"github.com/jonathan/role-tracker/internal/store/memory"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boardStub answers per board token: a queued error list, or a live board.
type boardStub struct {
	mu    sync.Mutex
	errs  map[string][]error
	calls map[string]int
}

func (b *boardStub) Type() types.SourceType { return types.SourceGreenhouse }

func (b *boardStub) FetchPostings(_ context.Context, src types.Source) ([]types.RawPosting, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls[src.Token]++
	if queued := b.errs[src.Token]; len(queued) > 0 {
		b.errs[src.Token] = queued[1:]
		return nil, queued[0]
	}
	return nil, nil
}

type fixture struct {
	store *memory.Store
	board *boardStub
	reg   *connector.Registry
	now   time.Time
	ids   map[string]types.Company
}

func newFixture(t *testing.T, tokens ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: memory.New(),
		board: &boardStub{errs: map[string][]error{}, calls: map[string]int{}},
		reg:   connector.NewRegistry(),
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ids:   map[string]types.Company{},
	}
	require.NoError(t, f.reg.Register(f.board))

	for _, token := range tokens {
		c, err := f.store.FindOrCreateCompany(ctx, types.Company{Name: token})
		require.NoError(t, err)
		f.ids[token] = *c
		require.NoError(t, f.store.UpsertSource(ctx, types.Source{
			CompanyID: c.ID, SourceType: types.SourceGreenhouse, Token: token,
			CareersURL: "https://boards.greenhouse.io/" + token, IsActive: true,
		}))
	}
	return f
}

func (f *fixture) validator(opts Options) *Validator {
	opts.Clock = func() time.Time { return f.now }
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond, Retryable: connector.IsTransient}
	}
	return NewValidator(f.store, f.reg, opts)
}

func (f *fixture) source(t *testing.T, token string) types.Source {
	t.Helper()
	srcs, err := f.store.ListSources(context.Background(), f.ids[token].ID)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	return srcs[0]
}

func TestValidator_Run(t *testing.T) {
	f := newFixture(t, "live", "gone", "flaky", "broken")
	f.board.errs["gone"] = []error{&fetch.Error{StatusCode: 404, Message: "board not found"}}
	f.board.errs["flaky"] = []error{
		&fetch.Error{StatusCode: 503}, &fetch.Error{StatusCode: 503}, &fetch.Error{StatusCode: 503},
	}
	f.board.errs["broken"] = []error{errors.New("malformed payload")}

	res, err := f.validator(Options{Workers: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Checked)
	assert.Equal(t, 1, res.Live)
	assert.Equal(t, 1, res.Deactivated)
	assert.Equal(t, 2, res.Unknown)

	assert.True(t, f.source(t, "live").IsActive)
	require.NotNil(t, f.source(t, "live").LastCheckedAt)
	assert.Equal(t, f.now, *f.source(t, "live").LastCheckedAt)

	gone := f.source(t, "gone")
	assert.False(t, gone.IsActive)
	require.NotNil(t, gone.LastCheckedAt)

	assert.True(t, f.source(t, "flaky").IsActive, "transient failures leave the source active")
	assert.Nil(t, f.source(t, "flaky").LastCheckedAt)
	assert.Equal(t, 3, f.board.calls["flaky"])
	assert.True(t, f.source(t, "broken").IsActive)

	active, err := f.store.ListActiveSources(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestValidator_DryRun(t *testing.T) {
	f := newFixture(t, "gone")
	f.board.errs["gone"] = []error{&fetch.Error{StatusCode: 404}}

	res, err := f.validator(Options{DryRun: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deactivated)
	require.Len(t, res.Checks, 1)
	assert.Equal(t, VerdictGone, res.Checks[0].Verdict)
	assert.True(t, f.source(t, "gone").IsActive)
}

func TestValidator_Limit(t *testing.T) {
	f := newFixture(t, "a", "b", "c")

	res, err := f.validator(Options{Limit: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Zero(t, f.board.calls["c"])
}

func TestValidator_DeactivatedSourceIsNotTracked(t *testing.T) {
	f := newFixture(t, "gone")
	f.board.errs["gone"] = []error{&fetch.Error{StatusCode: 404}}

	_, err := f.validator(Options{}).Run(context.Background())
	require.NoError(t, err)

	res, err := f.validator(Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
	assert.Equal(t, 1, f.board.calls["gone"])
}
