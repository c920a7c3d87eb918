package history

import (
	"context"
	"time"

	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
)

// ProjectionStore answers read-model queries over posting history.
type ProjectionStore interface {
	QueryPostings(ctx context.Context, q store.PostingQuery) ([]types.ProjectionRow, error)
}

// NewPostings returns postings first seen by the run stamped runAt.
func NewPostings(ctx context.Context, ps ProjectionStore, runAt time.Time) ([]types.ProjectionRow, error) {
	rows, err := ps.QueryPostings(ctx, store.PostingQuery{FirstSeenAt: &runAt})
	if err != nil {
		return nil, store.IOError(err, "failed to query new postings")
	}
	return rows, nil
}

// ActivePostings returns every posting currently seen by at least one source.
func ActivePostings(ctx context.Context, ps ProjectionStore) ([]types.ProjectionRow, error) {
	rows, err := ps.QueryPostings(ctx, store.PostingQuery{Status: types.PostingActive})
	if err != nil {
		return nil, store.IOError(err, "failed to query active postings")
	}
	return rows, nil
}
