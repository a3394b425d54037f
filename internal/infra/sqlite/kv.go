package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ─── Key-Value Store ────────────────────────────────────────────────────────
// Backs story completion sets. Values are opaque strings.

// Get returns the value for key; ok is false when the key was never set.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.db.GetContext(ctx, &v, `SELECT value FROM kv WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key, value string) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = datetime('now')
	`, key, value)
	if err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}
