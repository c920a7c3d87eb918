package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/role-tracker/internal/types"
)

const cursorKey = "discovery_cursor"

// LoadCursor returns the stored discovery cursor, or the zero cursor when none
// has been saved.
func (db *DB) LoadCursor(ctx context.Context) (types.Cursor, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT value FROM state_kv WHERE key = $1`,
		cursorKey,
	).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return types.Cursor{}, nil
		}
		return types.Cursor{}, fmt.Errorf("failed to load cursor: %w", err)
	}

	var c types.Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return types.Cursor{}, fmt.Errorf("failed to decode cursor: %w", err)
	}
	return c, nil
}

// SaveCursor stores c only if it is exactly one version ahead of the stored
// cursor; otherwise it returns types.ErrCursorConflict.
func (db *DB) SaveCursor(ctx context.Context, c types.Cursor) error {
	value, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cursor: %w", err)
	}

	var query string
	if c.Version == 1 {
		// First save; an existing row means someone else already saved.
		query = `INSERT INTO state_kv (key, value, version) VALUES ($1, $2, $3)
		         ON CONFLICT (key) DO NOTHING`
	} else {
		query = `UPDATE state_kv SET value = $2, version = $3, updated_at = NOW()
		         WHERE key = $1 AND version = $3 - 1`
	}

	tag, err := db.pool.Exec(ctx, query, cursorKey, value, c.Version)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: version %d", types.ErrCursorConflict, c.Version)
	}
	return nil
}
