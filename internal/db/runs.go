package db

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jonathan/role-tracker/internal/types"
)

// -----------------------------------------------------------------------------
// Run Ledger Methods
// -----------------------------------------------------------------------------

const foreignKeyViolation = "23503"

var runColumns = []string{
	"id", "kind", "started_at", "finished_at", "status",
	"attempted", "succeeded", "failed", "new_count", "closed_count", "error",
}

func scanRun(row pgx.Row) (*types.Run, error) {
	var r types.Run
	var kind string
	err := row.Scan(&r.ID, &kind, &r.StartedAt, &r.FinishedAt, &r.Status,
		&r.Counters.Attempted, &r.Counters.Succeeded, &r.Counters.Failed,
		&r.Counters.New, &r.Counters.Closed, &r.Error)
	if err != nil {
		return nil, err
	}
	r.Kind = types.RunKind(kind)
	return &r, nil
}

// CreateRun inserts a run record.
func (db *DB) CreateRun(ctx context.Context, run types.Run) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, started_at, status) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Kind), run.StartedAt, run.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun writes the terminal fields of a run that has not finished yet.
func (db *DB) FinishRun(ctx context.Context, run types.Run) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $2, status = $3, attempted = $4, succeeded = $5,
		     failed = $6, new_count = $7, closed_count = $8, error = $9
		 WHERE id = $1 AND finished_at IS NULL`,
		run.ID, run.FinishedAt, run.Status, run.Counters.Attempted, run.Counters.Succeeded,
		run.Counters.Failed, run.Counters.New, run.Counters.Closed, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	existing, err := db.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return types.ErrRunNotFound
	}
	return types.ErrRunFinished
}

// GetRun returns nil when id is unknown.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*types.Run, error) {
	query, args, err := psql.Select(runColumns...).From("runs").Where("id = ?", id).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}
	r, err := scanRun(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

func listRunsQuery(limit int) (string, []any, error) {
	b := psql.Select(runColumns...).From("runs").OrderBy("started_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	query, args, err := listRunsQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LatestFinishedRun returns the newest finished run of kind, or nil.
func (db *DB) LatestFinishedRun(ctx context.Context, kind types.RunKind) (*types.Run, error) {
	query, args, err := psql.Select(runColumns...).
		From("runs").
		Where(sq.Eq{"kind": string(kind)}).
		Where(sq.NotEq{"finished_at": nil}).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build run query: %w", err)
	}
	r, err := scanRun(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return r, nil
}

// InsertSourceRun appends one attempt record. An unknown run returns
// types.ErrRunNotFound.
func (db *DB) InsertSourceRun(ctx context.Context, sr types.SourceRun) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO source_runs (id, run_id, company_id, source_type, outcome, posting_count,
		                          new_count, closed_count, error_detail, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sr.ID, sr.RunID, sr.CompanyID, string(sr.SourceType), string(sr.Outcome), sr.PostingCount,
		sr.NewCount, sr.ClosedCount, sr.ErrorDetail, sr.StartedAt, sr.FinishedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return types.ErrRunNotFound
		}
		return fmt.Errorf("failed to insert source run: %w", err)
	}
	return nil
}

// ListSourceRuns returns a run's attempts in insertion order.
func (db *DB) ListSourceRuns(ctx context.Context, runID uuid.UUID) ([]types.SourceRun, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, run_id, company_id, source_type, outcome, posting_count, new_count,
		        closed_count, error_detail, started_at, finished_at
		 FROM source_runs
		 WHERE run_id = $1
		 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list source runs: %w", err)
	}
	defer rows.Close()

	var out []types.SourceRun
	for rows.Next() {
		var sr types.SourceRun
		var st, outcome string
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.CompanyID, &st, &outcome, &sr.PostingCount,
			&sr.NewCount, &sr.ClosedCount, &sr.ErrorDetail, &sr.StartedAt, &sr.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source run: %w", err)
		}
		sr.SourceType = types.SourceType(st)
		sr.Outcome = types.FetchOutcome(outcome)
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list source runs: %w", err)
	}
	return out, nil
}
