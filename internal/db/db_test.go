package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_DeclaresTables(t *testing.T) {
	schema := Schema()
	for _, table := range []string{"companies", "company_sources", "postings", "state_kv", "runs", "source_runs"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

func TestCompaniesRangeQuery(t *testing.T) {
	query, args, err := companiesRangeQuery(40, 20)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM companies ORDER BY position")
	assert.Contains(t, query, "LIMIT 20")
	assert.Contains(t, query, "OFFSET 40")
	assert.Empty(t, args)
}

func TestPostingQuery(t *testing.T) {
	runAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	companyID := uuid.New()

	tests := []struct {
		name     string
		q        store.PostingQuery
		contains []string
		args     []any
	}{
		{
			name:     "unfiltered",
			q:        store.PostingQuery{},
			contains: []string{"JOIN companies c ON c.id = p.company_id", "ORDER BY p.first_seen_at DESC, c.name, p.title, p.apply_url"},
		},
		{
			name:     "active",
			q:        store.PostingQuery{Status: types.PostingActive},
			contains: []string{"WHERE p.status = $1"},
			args:     []any{"active"},
		},
		{
			name:     "new in run for company",
			q:        store.PostingQuery{FirstSeenAt: &runAt, CompanyID: &companyID, Limit: 5},
			contains: []string{"p.first_seen_at = $1", "p.company_id = $2", "LIMIT 5"},
			args:     []any{runAt, companyID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := postingQuery(tt.q)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, query, s)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestListRunsQuery(t *testing.T) {
	query, _, err := listRunsQuery(10)
	require.NoError(t, err)
	assert.Contains(t, query, "ORDER BY started_at DESC, id")
	assert.Contains(t, query, "LIMIT 10")

	query, _, err = listRunsQuery(0)
	require.NoError(t, err)
	assert.NotContains(t, query, "LIMIT")
}

func TestSourceTypeArrays(t *testing.T) {
	in := []types.SourceType{types.SourceGreenhouse, types.SourceLever}
	assert.Equal(t, []string{"greenhouse", "lever"}, toStrings(in))
	assert.Equal(t, in, fromStrings([]string{"greenhouse", "lever"}))
	assert.Nil(t, fromStrings(nil))
	assert.Equal(t, []string{}, toStrings(nil))
}
