package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/outpost-game/outpost/internal/domain"
)

// ─── Action Commit ──────────────────────────────────────────────────────────

// CommitAction applies one resolved action in a single transaction:
//
//  1. compare-and-set the energy debit on (id, version)
//  2. merge the found item into the (actor, item) inventory line
//  3. append the audit record
//
// A version miss returns domain.ErrVersionConflict and writes nothing.
func (db *DB) CommitAction(ctx context.Context, c domain.ActionCommit) (*domain.InventoryLine, error) {
	if c.NewEnergy < 0 {
		return nil, fmt.Errorf("%w: energy would go negative", domain.ErrInvalidArgument)
	}

	var line *domain.InventoryLine
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE actors SET energy = ?, version = version + 1
			WHERE id = ? AND version = ?
		`, c.NewEnergy, c.ActorID, c.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("debit energy: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit energy rows: %w", err)
		}
		if n == 0 {
			return domain.ErrVersionConflict
		}

		if c.ItemID != "" {
			l, err := upsertInventory(ctx, tx, c.ActorID, c.ItemID, c.Quantity)
			if err != nil {
				return err
			}
			line = l
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO transactions (id, actor_id, action, item_id, quantity, description, cost, created_at)
			VALUES (:id, :actor_id, :action, :item_id, :quantity, :description, :cost, :created_at)
		`, c.Record); err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

func upsertInventory(ctx context.Context, tx *sqlx.Tx, actorID, itemID string, qty int) (*domain.InventoryLine, error) {
	if qty < 1 {
		qty = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO inventory (actor_id, item_id, quantity, equipped)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(actor_id, item_id) DO UPDATE SET
			quantity = inventory.quantity + excluded.quantity
	`, actorID, itemID, qty); err != nil {
		return nil, fmt.Errorf("upsert inventory: %w", err)
	}

	var l domain.InventoryLine
	if err := tx.GetContext(ctx, &l, `
		SELECT actor_id, item_id, quantity, equipped FROM inventory
		WHERE actor_id = ? AND item_id = ?
	`, actorID, itemID); err != nil {
		return nil, fmt.Errorf("reload inventory: %w", err)
	}
	return &l, nil
}

// GrantItem adds qty of itemID to the actor owning wallet outside of an
// action. Used by story effects; it writes no audit record and does not touch
// the actor version.
func (db *DB) GrantItem(ctx context.Context, wallet, itemID string, qty int) (*domain.InventoryLine, error) {
	var line *domain.InventoryLine
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var actorID string
		if err := tx.GetContext(ctx, &actorID, `SELECT id FROM actors WHERE wallet = ?`, wallet); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: no actor for wallet %s", domain.ErrNotFound, wallet)
			}
			return fmt.Errorf("grant item actor: %w", err)
		}
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM items WHERE id = ?`, itemID); err != nil {
			return fmt.Errorf("grant item lookup: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: item %s", domain.ErrNotFound, itemID)
		}
		l, err := upsertInventory(ctx, tx, actorID, itemID, qty)
		if err != nil {
			return err
		}
		line = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// ─── Inventory Queries ──────────────────────────────────────────────────────

// Inventory lists an actor's inventory lines ordered by item.
func (db *DB) Inventory(ctx context.Context, actorID string) ([]domain.InventoryLine, error) {
	var lines []domain.InventoryLine
	if err := db.db.SelectContext(ctx, &lines, `
		SELECT actor_id, item_id, quantity, equipped FROM inventory
		WHERE actor_id = ? ORDER BY item_id
	`, actorID); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return lines, nil
}

// CountInventory returns the quantity of itemID held by actorID (0 if none).
func (db *DB) CountInventory(ctx context.Context, actorID, itemID string) (int, error) {
	var n int
	if err := db.db.GetContext(ctx, &n, `
		SELECT COALESCE(SUM(quantity), 0) FROM inventory WHERE actor_id = ? AND item_id = ?
	`, actorID, itemID); err != nil {
		return 0, fmt.Errorf("count inventory: %w", err)
	}
	return n, nil
}

// SetEquipped toggles the equipped flag on an existing inventory line.
func (db *DB) SetEquipped(ctx context.Context, actorID, itemID string, equipped bool) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE inventory SET equipped = ? WHERE actor_id = ? AND item_id = ?
	`, equipped, actorID, itemID)
	if err != nil {
		return fmt.Errorf("set equipped: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set equipped: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ─── Audit Queries ──────────────────────────────────────────────────────────

// Transactions returns an actor's most recent audit records, newest first.
// limit <= 0 means 50.
func (db *DB) Transactions(ctx context.Context, actorID string, limit int) ([]domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []domain.TransactionRecord
	if err := db.db.SelectContext(ctx, &recs, `
		SELECT id, actor_id, action, item_id, quantity, description, cost, created_at
		FROM transactions WHERE actor_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, actorID, limit); err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	return recs, nil
}

// CountTransactions returns how many audit records an actor has.
func (db *DB) CountTransactions(ctx context.Context, actorID string) (int, error) {
	var n int
	if err := db.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM transactions WHERE actor_id = ?`, actorID); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
