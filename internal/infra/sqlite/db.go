// Package sqlite implements outpost persistence on an embedded SQLite
// database (modernc.org/sqlite, pure Go) accessed through sqlx.
//
// One DB value serves the action store, the catalog, the audit log and the
// key-value store used by story completion sets.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "outpost.db"

// DB wraps a SQLite connection.
type DB struct {
	db *sqlx.DB
}

// Open opens or creates the database in dir and applies migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	dsn := "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_time_format=sqlite"

	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection serialises writers
	// in-process instead of surfacing SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db := &DB{db: conn}
	if err := db.migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.db.Close()
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per entry.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS actors (
			id          TEXT PRIMARY KEY,
			wallet      TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL DEFAULT '',
			level       INTEGER NOT NULL DEFAULT 1 CHECK (level >= 1),
			health      INTEGER NOT NULL DEFAULT 100 CHECK (health BETWEEN 0 AND 100),
			energy      INTEGER NOT NULL DEFAULT 100 CHECK (energy BETWEEN 0 AND 100),
			experience  INTEGER NOT NULL DEFAULT 0 CHECK (experience >= 0),
			location_id TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'ACTIVE',
			version     INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS items (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			category    TEXT NOT NULL,
			rarity      INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			image_uri   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_category ON items(category)`,

		`CREATE TABLE IF NOT EXISTS locations (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			reward_category TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS location_actions (
			location_id TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			action      TEXT NOT NULL,
			PRIMARY KEY (location_id, action)
		)`,

		// One line per (actor, item); repeated finds bump quantity.
		`CREATE TABLE IF NOT EXISTS inventory (
			actor_id TEXT NOT NULL REFERENCES actors(id),
			item_id  TEXT NOT NULL REFERENCES items(id),
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			equipped INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (actor_id, item_id)
		)`,

		// Append-only audit log.
		`CREATE TABLE IF NOT EXISTS transactions (
			id          TEXT PRIMARY KEY,
			actor_id    TEXT NOT NULL REFERENCES actors(id),
			action      TEXT NOT NULL,
			item_id     TEXT NOT NULL DEFAULT '',
			quantity    INTEGER NOT NULL DEFAULT 0,
			description TEXT NOT NULL,
			cost        INTEGER NOT NULL,
			created_at  DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_actor ON transactions(actor_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range Migrations() {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
