// Package store holds the contracts shared by the Postgres and in-memory
// persistence layers.
package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jonathan/role-tracker/internal/types"
)

// ErrStoreIO marks persistence failures. A run that hits one aborts.
var ErrStoreIO = errors.New("store i/o failure")

// IOError wraps err with msg and marks it as a store failure. Nil stays nil.
func IOError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrStoreIO)
}

// IsIO reports whether err is a store failure.
func IsIO(err error) bool {
	return errors.Is(err, ErrStoreIO)
}

// PostingQuery filters the posting read model. Zero fields do not filter.
type PostingQuery struct {
	Status      types.PostingStatus
	FirstSeenAt *time.Time
	CompanyID   *uuid.UUID
	Limit       int
}

// Companies is the ordered company registry.
type Companies interface {
	FindOrCreateCompany(ctx context.Context, c types.Company) (*types.Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (*types.Company, error)
	CountCompanies(ctx context.Context) (int, error)
	ListCompaniesRange(ctx context.Context, offset, limit int) ([]types.Company, error)
}

// Sources is the per-company ATS endpoint registry.
type Sources interface {
	UpsertSource(ctx context.Context, src types.Source) error
	ListSources(ctx context.Context, companyID uuid.UUID) ([]types.Source, error)
	ListActiveSources(ctx context.Context) ([]types.Source, error)
	MarkSourceChecked(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error
	DeactivateSource(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error
}

// Postings is the posting history plus its read model.
type Postings interface {
	ListCompanyPostings(ctx context.Context, companyID uuid.UUID) ([]types.Posting, error)
	ApplyMerge(ctx context.Context, companyID uuid.UUID, changed []types.Posting) error
	QueryPostings(ctx context.Context, q PostingQuery) ([]types.ProjectionRow, error)
}

// Cursors persists the discovery cursor.
type Cursors interface {
	LoadCursor(ctx context.Context) (types.Cursor, error)
	SaveCursor(ctx context.Context, c types.Cursor) error
}

// Runs is the append-only run ledger.
type Runs interface {
	CreateRun(ctx context.Context, run types.Run) error
	FinishRun(ctx context.Context, run types.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error)
	ListRuns(ctx context.Context, limit int) ([]types.Run, error)
	LatestFinishedRun(ctx context.Context, kind types.RunKind) (*types.Run, error)
	InsertSourceRun(ctx context.Context, sr types.SourceRun) error
	ListSourceRuns(ctx context.Context, runID uuid.UUID) ([]types.SourceRun, error)
}

// Store is everything a backend provides.
type Store interface {
	Companies
	Sources
	Postings
	Cursors
	Runs
	Close()
}
