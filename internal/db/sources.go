package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/role-tracker/internal/types"
)

// -----------------------------------------------------------------------------
// Source Methods
// -----------------------------------------------------------------------------

func scanSource(row pgx.Row) (types.Source, error) {
	var s types.Source
	var st string
	err := row.Scan(&s.CompanyID, &st, &s.CareersURL, &s.Token, &s.IsActive, &s.LastCheckedAt)
	s.SourceType = types.SourceType(st)
	return s, err
}

// UpsertSource inserts or replaces the source for (company, type). A nil
// LastCheckedAt keeps the stored value.
func (db *DB) UpsertSource(ctx context.Context, src types.Source) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO company_sources (company_id, source_type, careers_url, token, is_active, last_checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (company_id, source_type) DO UPDATE SET
		     careers_url = EXCLUDED.careers_url,
		     token = EXCLUDED.token,
		     is_active = EXCLUDED.is_active,
		     last_checked_at = COALESCE(EXCLUDED.last_checked_at, company_sources.last_checked_at),
		     updated_at = NOW()`,
		src.CompanyID, string(src.SourceType), src.CareersURL, src.Token, src.IsActive, src.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source %s/%s: %w", src.CompanyID, src.SourceType, err)
	}
	return nil
}

// ListSources returns a company's sources ordered by type.
func (db *DB) ListSources(ctx context.Context, companyID uuid.UUID) ([]types.Source, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT company_id, source_type, careers_url, token, is_active, last_checked_at
		 FROM company_sources
		 WHERE company_id = $1
		 ORDER BY source_type`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return collectSources(rows)
}

// ListActiveSources returns active sources by company position then type.
func (db *DB) ListActiveSources(ctx context.Context) ([]types.Source, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT s.company_id, s.source_type, s.careers_url, s.token, s.is_active, s.last_checked_at
		 FROM company_sources s
		 JOIN companies c ON c.id = s.company_id
		 WHERE s.is_active
		 ORDER BY c.position, s.source_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}
	return collectSources(rows)
}

func collectSources(rows pgx.Rows) ([]types.Source, error) {
	defer rows.Close()

	var sources []types.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}
	return sources, nil
}

// MarkSourceChecked stamps last_checked_at.
func (db *DB) MarkSourceChecked(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE company_sources SET last_checked_at = $3, updated_at = NOW()
		 WHERE company_id = $1 AND source_type = $2`,
		companyID, string(st), at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark source checked: %w", err)
	}
	return nil
}

// DeactivateSource clears is_active and stamps last_checked_at.
func (db *DB) DeactivateSource(ctx context.Context, companyID uuid.UUID, st types.SourceType, at time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE company_sources SET is_active = FALSE, last_checked_at = $3, updated_at = NOW()
		 WHERE company_id = $1 AND source_type = $2`,
		companyID, string(st), at,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate source: %w", err)
	}
	return nil
}
