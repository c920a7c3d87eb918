package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/role-tracker/internal/types"
)

// -----------------------------------------------------------------------------
// Company Methods
// -----------------------------------------------------------------------------

var companyColumns = []string{
	"id", "name", "name_normalized", "priority", "careers_url", "domain", "position", "created_at",
}

func scanCompany(row pgx.Row) (*types.Company, error) {
	var c types.Company
	if err := row.Scan(&c.ID, &c.Name, &c.NameNormalized, &c.Priority, &c.CareersURL, &c.Domain, &c.Position, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindOrCreateCompany finds an existing company by normalized name or appends
// a new one at the end of the registry.
func (db *DB) FindOrCreateCompany(ctx context.Context, in types.Company) (*types.Company, error) {
	normalized := types.NormalizeName(in.Name)
	if normalized == "" {
		return nil, fmt.Errorf("company name cannot be empty")
	}

	// Try to find existing
	company, err := db.GetCompanyByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if company != nil {
		return company, nil
	}

	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	var domain *string
	if in.Domain != nil {
		d := types.NormalizeDomain(*in.Domain)
		domain = &d
	}

	// Create new; a concurrent insert of the same name returns the winner's row.
	c, err := scanCompany(db.pool.QueryRow(ctx,
		`INSERT INTO companies (id, name, name_normalized, priority, careers_url, domain)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name_normalized) DO UPDATE SET name_normalized = EXCLUDED.name_normalized
		 RETURNING id, name, name_normalized, priority, careers_url, domain, position, created_at`,
		in.ID, in.Name, normalized, in.Priority, in.CareersURL, domain,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	return c, nil
}

// GetCompanyByNormalizedName retrieves a company by its normalized name
func (db *DB) GetCompanyByNormalizedName(ctx context.Context, normalized string) (*types.Company, error) {
	c, err := scanCompany(db.pool.QueryRow(ctx,
		`SELECT id, name, name_normalized, priority, careers_url, domain, position, created_at
		 FROM companies WHERE name_normalized = $1`,
		normalized,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// GetCompany retrieves a company by its UUID
func (db *DB) GetCompany(ctx context.Context, id uuid.UUID) (*types.Company, error) {
	c, err := scanCompany(db.pool.QueryRow(ctx,
		`SELECT id, name, name_normalized, priority, careers_url, domain, position, created_at
		 FROM companies WHERE id = $1`,
		id,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// CountCompanies returns the registry size.
func (db *DB) CountCompanies(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return n, nil
}

func companiesRangeQuery(offset, limit int) (string, []any, error) {
	return psql.Select(companyColumns...).
		From("companies").
		OrderBy("position").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
}

// ListCompaniesRange returns companies [offset, offset+limit) in registry order.
func (db *DB) ListCompaniesRange(ctx context.Context, offset, limit int) ([]types.Company, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}

	query, args, err := companiesRangeQuery(offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build company query: %w", err)
	}
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []types.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}
