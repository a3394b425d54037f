package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/outpost-game/outpost/internal/domain"
)

const actorColumns = `id, wallet, name, level, health, energy, experience, location_id, status, version`

// ─── Actor Operations ───────────────────────────────────────────────────────

// ActorByWallet loads the actor owning wallet, or domain.ErrNotFound.
func (db *DB) ActorByWallet(ctx context.Context, wallet string) (*domain.Actor, error) {
	var a domain.Actor
	err := db.db.GetContext(ctx, &a, `SELECT `+actorColumns+` FROM actors WHERE wallet = ?`, wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("actor by wallet: %w", err)
	}
	return &a, nil
}

// InsertActor creates an actor. An empty ID gets a fresh UUID; stats are
// clamped into range first.
func (db *DB) InsertActor(ctx context.Context, a *domain.Actor) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Wallet = domain.NormalizeWallet(a.Wallet)
	if a.Wallet == "" {
		return fmt.Errorf("%w: actor wallet is required", domain.ErrInvalidArgument)
	}
	if a.Status == "" {
		a.Status = domain.ActorActive
	}
	a.Clamp()

	_, err := db.db.NamedExecContext(ctx, `
		INSERT INTO actors (`+actorColumns+`)
		VALUES (:id, :wallet, :name, :level, :health, :energy, :experience, :location_id, :status, :version)
	`, a)
	if err != nil {
		return fmt.Errorf("insert actor: %w", err)
	}
	return nil
}

// StatsEdit is an admin change to an actor. Nil fields are left alone.
type StatsEdit struct {
	Level      *int
	Health     *int
	Energy     *int
	Experience *int
	LocationID *string
	Status     *domain.ActorStatus
}

// SetActorStats applies an admin edit and bumps the actor's version so that
// any in-flight resolution retries against the new values.
func (db *DB) SetActorStats(ctx context.Context, wallet string, edit StatsEdit) (*domain.Actor, error) {
	var out *domain.Actor
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var a domain.Actor
		err := tx.GetContext(ctx, &a, `SELECT `+actorColumns+` FROM actors WHERE wallet = ?`, wallet)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load actor: %w", err)
		}

		if edit.Level != nil {
			a.Level = *edit.Level
		}
		if edit.Health != nil {
			a.Health = *edit.Health
		}
		if edit.Energy != nil {
			a.Energy = *edit.Energy
		}
		if edit.Experience != nil {
			a.Experience = *edit.Experience
		}
		if edit.LocationID != nil {
			a.LocationID = *edit.LocationID
		}
		if edit.Status != nil {
			a.Status = *edit.Status
		}
		a.Clamp()
		a.Version++

		if _, err := tx.NamedExecContext(ctx, `
			UPDATE actors
			SET level = :level, health = :health, energy = :energy, experience = :experience,
			    location_id = :location_id, status = :status, version = :version
			WHERE id = :id
		`, &a); err != nil {
			return fmt.Errorf("update actor: %w", err)
		}
		out = &a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
