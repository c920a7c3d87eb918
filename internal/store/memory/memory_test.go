package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addCompanies(t *testing.T, s *Store, names ...string) []types.Company {
	t.Helper()
	var out []types.Company
	for _, n := range names {
		c, err := s.FindOrCreateCompany(context.Background(), types.Company{Name: n})
		require.NoError(t, err)
		out = append(out, *c)
	}
	return out
}

func TestCompanies_OrderedRange(t *testing.T) {
	s := New()
	ctx := context.Background()
	addCompanies(t, s, "Acme", "Beta", "Gamma", "Delta")

	again, err := s.FindOrCreateCompany(ctx, types.Company{Name: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Position, "same normalized name is the same company")

	n, err := s.CountCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err := s.ListCompaniesRange(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Beta", page[0].Name)
	assert.Equal(t, "Gamma", page[1].Name)

	tail, err := s.ListCompaniesRange(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, tail, 1)

	none, err := s.ListCompaniesRange(ctx, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSources_UpsertKeepsOnePerType(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := addCompanies(t, s, "Acme")[0]

	require.NoError(t, s.UpsertSource(ctx, types.Source{CompanyID: c.ID, SourceType: types.SourceLever, Token: "acme", IsActive: true}))
	require.NoError(t, s.UpsertSource(ctx, types.Source{CompanyID: c.ID, SourceType: types.SourceLever, Token: "acme-inc", IsActive: true}))
	require.NoError(t, s.UpsertSource(ctx, types.Source{CompanyID: c.ID, SourceType: types.SourceAshby, Token: "acme", IsActive: false}))

	all, err := s.ListSources(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, types.SourceAshby, all[0].SourceType)
	assert.Equal(t, "acme-inc", all[1].Token)

	active, err := s.ListActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, types.SourceLever, active[0].SourceType)

	err = s.UpsertSource(ctx, types.Source{CompanyID: uuid.New(), SourceType: types.SourceLever})
	assert.Error(t, err)
}

func TestSources_Deactivate(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := addCompanies(t, s, "Acme")[0]
	require.NoError(t, s.UpsertSource(ctx, types.Source{CompanyID: c.ID, SourceType: types.SourceLever, Token: "acme", IsActive: true}))
	require.NoError(t, s.UpsertSource(ctx, types.Source{CompanyID: c.ID, SourceType: types.SourceAshby, Token: "acme", IsActive: true}))

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.DeactivateSource(ctx, c.ID, types.SourceLever, at))
	require.NoError(t, s.DeactivateSource(ctx, c.ID, types.SourceWorkday, at))

	active, err := s.ListActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, types.SourceAshby, active[0].SourceType)

	all, err := s.ListSources(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].IsActive)
	require.NotNil(t, all[1].LastCheckedAt)
	assert.Equal(t, at, *all[1].LastCheckedAt)
}

func TestCursor_VersionedSave(t *testing.T) {
	s := New()
	ctx := context.Background()

	c, err := s.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Cursor{}, c)

	require.NoError(t, s.SaveCursor(ctx, types.Cursor{Offset: 5, CompanyCount: 10, Version: 1}))

	err = s.SaveCursor(ctx, types.Cursor{Offset: 7, Version: 1})
	assert.ErrorIs(t, err, types.ErrCursorConflict)

	c, err = s.LoadCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Offset)
}

func TestRuns_FinishOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	run := types.Run{ID: uuid.New(), Kind: types.RunKindTrack, StartedAt: time.Now(), Status: types.RunStatusRunning}
	require.NoError(t, s.CreateRun(ctx, run))

	done := time.Now()
	run.FinishedAt = &done
	run.Status = types.RunStatusCompleted
	run.Counters = types.RunCounters{Attempted: 3}
	require.NoError(t, s.FinishRun(ctx, run))
	assert.ErrorIs(t, s.FinishRun(ctx, run), types.ErrRunFinished)
	assert.ErrorIs(t, s.FinishRun(ctx, types.Run{ID: uuid.New()}), types.ErrRunNotFound)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Counters.Attempted)

	latest, err := s.LatestFinishedRun(ctx, types.RunKindTrack)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)

	assert.ErrorIs(t, s.InsertSourceRun(ctx, types.SourceRun{RunID: uuid.New()}), types.ErrRunNotFound)
}

func TestQueryPostings_FilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	cs := addCompanies(t, s, "Zeta", "Acme")
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	require.NoError(t, s.ApplyMerge(ctx, cs[0].ID, []types.Posting{
		{Key: "z1", CompanyID: cs[0].ID, Title: "B", FirstSeenAt: t2, Status: types.PostingActive},
		{Key: "z2", CompanyID: cs[0].ID, Title: "A", FirstSeenAt: t1, Status: types.PostingClosed},
	}))
	require.NoError(t, s.ApplyMerge(ctx, cs[1].ID, []types.Posting{
		{Key: "a1", CompanyID: cs[1].ID, Title: "C", FirstSeenAt: t2, Status: types.PostingActive},
	}))

	active, err := s.QueryPostings(ctx, store.PostingQuery{Status: types.PostingActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Acme", active[0].Company)
	assert.Equal(t, "Zeta", active[1].Company)

	fresh, err := s.QueryPostings(ctx, store.PostingQuery{FirstSeenAt: &t1})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "A", fresh[0].Title)

	err = s.ApplyMerge(ctx, cs[0].ID, []types.Posting{{Key: "x", CompanyID: cs[1].ID}})
	assert.Error(t, err)
}
