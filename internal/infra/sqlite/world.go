package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/outpost-game/outpost/internal/domain"
)

// ─── Location Operations ────────────────────────────────────────────────────

// UpsertLocation inserts or replaces a location and its supported actions.
func (db *DB) UpsertLocation(ctx context.Context, loc domain.Location) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO locations (id, name, reward_category)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name            = excluded.name,
				reward_category = excluded.reward_category
		`, loc.ID, loc.Name, loc.RewardCategory); err != nil {
			return fmt.Errorf("upsert location: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM location_actions WHERE location_id = ?`, loc.ID); err != nil {
			return fmt.Errorf("clear location actions: %w", err)
		}
		for _, a := range loc.Actions {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO location_actions (location_id, action) VALUES (?, ?)
			`, loc.ID, a); err != nil {
				return fmt.Errorf("insert location action: %w", err)
			}
		}
		return nil
	})
}

// Location loads a location with its actions, or domain.ErrNotFound.
func (db *DB) Location(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	err := db.db.GetContext(ctx, &loc, `SELECT id, name, reward_category FROM locations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	if err := db.db.SelectContext(ctx, &loc.Actions, `
		SELECT action FROM location_actions WHERE location_id = ? ORDER BY action
	`, id); err != nil {
		return nil, fmt.Errorf("location actions: %w", err)
	}
	return &loc, nil
}

// ─── Catalog Operations ─────────────────────────────────────────────────────

// UpsertItem inserts or replaces a catalog entry.
func (db *DB) UpsertItem(ctx context.Context, it domain.Item) error {
	_, err := db.db.NamedExecContext(ctx, `
		INSERT INTO items (id, name, category, rarity, description, image_uri)
		VALUES (:id, :name, :category, :rarity, :description, :image_uri)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			category    = excluded.category,
			rarity      = excluded.rarity,
			description = excluded.description,
			image_uri   = excluded.image_uri
	`, it)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// CatalogByCategory returns every item in category ordered by id.
func (db *DB) CatalogByCategory(ctx context.Context, category string) ([]domain.Item, error) {
	var items []domain.Item
	if err := db.db.SelectContext(ctx, &items, `
		SELECT id, name, category, rarity, description, image_uri
		FROM items WHERE category = ? ORDER BY id
	`, category); err != nil {
		return nil, fmt.Errorf("catalog by category: %w", err)
	}
	return items, nil
}

// Item loads one catalog entry, or domain.ErrNotFound.
func (db *DB) Item(ctx context.Context, id string) (*domain.Item, error) {
	var it domain.Item
	err := db.db.GetContext(ctx, &it, `
		SELECT id, name, category, rarity, description, image_uri FROM items WHERE id = ?
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("item: %w", err)
	}
	return &it, nil
}
