package db

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/types"
)

// -----------------------------------------------------------------------------
// Posting Methods
// -----------------------------------------------------------------------------

// ListCompanyPostings returns every posting stored for companyID.
func (db *DB) ListCompanyPostings(ctx context.Context, companyID uuid.UUID) ([]types.Posting, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT key, company_id, source_job_id, origins, sources_seen, title, location,
		        apply_url, canonical_apply_url, posted_at, first_seen_at, last_seen_at,
		        closed_at, status
		 FROM postings
		 WHERE company_id = $1
		 ORDER BY key`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list postings: %w", err)
	}
	defer rows.Close()

	var postings []types.Posting
	for rows.Next() {
		var p types.Posting
		var origins, seen []string
		var status string
		if err := rows.Scan(&p.Key, &p.CompanyID, &p.SourceJobID, &origins, &seen, &p.Title,
			&p.Location, &p.ApplyURL, &p.CanonicalApplyURL, &p.PostedAt, &p.FirstSeenAt,
			&p.LastSeenAt, &p.ClosedAt, &status); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		p.Origins = fromStrings(origins)
		p.SourcesSeen = fromStrings(seen)
		p.Status = types.PostingStatus(status)
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read postings: %w", err)
	}
	return postings, nil
}

// ApplyMerge writes every changed posting in one transaction.
func (db *DB) ApplyMerge(ctx context.Context, companyID uuid.UUID, changed []types.Posting) error {
	if len(changed) == 0 {
		return nil
	}
	for _, p := range changed {
		if p.CompanyID != companyID {
			return fmt.Errorf("posting %s belongs to company %s, not %s", p.Key, p.CompanyID, companyID)
		}
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range changed {
		batch.Queue(
			`INSERT INTO postings (key, company_id, source_job_id, origins, sources_seen, title,
			                       location, apply_url, canonical_apply_url, posted_at,
			                       first_seen_at, last_seen_at, closed_at, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (key) DO UPDATE SET
			     source_job_id = EXCLUDED.source_job_id,
			     origins = EXCLUDED.origins,
			     sources_seen = EXCLUDED.sources_seen,
			     title = EXCLUDED.title,
			     location = EXCLUDED.location,
			     apply_url = EXCLUDED.apply_url,
			     canonical_apply_url = EXCLUDED.canonical_apply_url,
			     posted_at = EXCLUDED.posted_at,
			     first_seen_at = EXCLUDED.first_seen_at,
			     last_seen_at = EXCLUDED.last_seen_at,
			     closed_at = EXCLUDED.closed_at,
			     status = EXCLUDED.status`,
			p.Key, p.CompanyID, p.SourceJobID, toStrings(p.Origins), toStrings(p.SourcesSeen), p.Title,
			p.Location, p.ApplyURL, p.CanonicalApplyURL, p.PostedAt,
			p.FirstSeenAt, p.LastSeenAt, p.ClosedAt, string(p.Status),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write postings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	return nil
}

func postingQuery(q store.PostingQuery) (string, []any, error) {
	b := psql.Select("c.name", "p.title", "p.location", "p.apply_url", "p.first_seen_at", "p.status").
		From("postings p").
		Join("companies c ON c.id = p.company_id").
		OrderBy("p.first_seen_at DESC", "c.name", "p.title", "p.apply_url")

	if q.Status != "" {
		b = b.Where(sq.Eq{"p.status": string(q.Status)})
	}
	if q.FirstSeenAt != nil {
		b = b.Where(sq.Eq{"p.first_seen_at": *q.FirstSeenAt})
	}
	if q.CompanyID != nil {
		// uuid.UUID is an array; sq.Eq would expand it into an IN list.
		b = b.Where("p.company_id = ?", *q.CompanyID)
	}
	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	return b.ToSql()
}

// QueryPostings reads the projection rows matching q.
func (db *DB) QueryPostings(ctx context.Context, q store.PostingQuery) ([]types.ProjectionRow, error) {
	query, args, err := postingQuery(q)
	if err != nil {
		return nil, fmt.Errorf("failed to build posting query: %w", err)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	defer rows.Close()

	var out []types.ProjectionRow
	for rows.Next() {
		var r types.ProjectionRow
		var status string
		if err := rows.Scan(&r.Company, &r.Title, &r.Location, &r.ApplyURL, &r.FirstSeenAt, &status); err != nil {
			return nil, fmt.Errorf("failed to scan projection row: %w", err)
		}
		r.Status = types.PostingStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projection rows: %w", err)
	}
	return out, nil
}

func toStrings(in []types.SourceType) []string {
	out := make([]string, len(in))
	for i, st := range in {
		out[i] = string(st)
	}
	return out
}

func fromStrings(in []string) []types.SourceType {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.SourceType, len(in))
	for i, s := range in {
		out[i] = types.SourceType(s)
	}
	return out
}
