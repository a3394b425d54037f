package sqlite

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/outpost-game/outpost/internal/domain"
)

// World is reference data loaded from a TOML seed file:
//
//	[[items]]
//	id = "copper-ore"
//	name = "Copper Ore"
//	category = "ore"
//	rarity = "UNCOMMON"
//
//	[[locations]]
//	id = "quarry"
//	name = "Old Quarry"
//	reward_category = "ore"
//	actions = ["MINE"]
//
//	[[actors]]
//	wallet = "0xabc"
//	location_id = "quarry"
type World struct {
	Items     []domain.Item     `toml:"items"`
	Locations []domain.Location `toml:"locations"`
	Actors    []SeedActor       `toml:"actors"`
}

// SeedActor is an actor entry in a seed file. Unset stats take defaults.
type SeedActor struct {
	Wallet     string `toml:"wallet"`
	Name       string `toml:"name"`
	Level      int    `toml:"level"`
	Health     *int   `toml:"health"`
	Energy     *int   `toml:"energy"`
	Experience int    `toml:"experience"`
	LocationID string `toml:"location_id"`
}

// LoadWorldFile decodes a TOML seed file.
func LoadWorldFile(path string) (*World, error) {
	var w World
	md, err := toml.DecodeFile(path, &w)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode %s: unknown keys %v", path, undecoded)
	}
	return &w, nil
}

// SeedResult counts what ApplyWorld wrote.
type SeedResult struct {
	Items     int
	Locations int
	Actors    int
	Skipped   int // actors whose wallet already existed
}

// ApplyWorld upserts items and locations and inserts actors that do not
// exist yet. Existing actors are never overwritten.
func (db *DB) ApplyWorld(ctx context.Context, w *World) (SeedResult, error) {
	var res SeedResult
	for _, it := range w.Items {
		if err := db.UpsertItem(ctx, it); err != nil {
			return res, err
		}
		res.Items++
	}
	for _, loc := range w.Locations {
		for _, a := range loc.Actions {
			if !a.IsValid() {
				return res, fmt.Errorf("%w: location %s has unknown action %q", domain.ErrInvalidArgument, loc.ID, a)
			}
		}
		if err := db.UpsertLocation(ctx, loc); err != nil {
			return res, err
		}
		res.Locations++
	}
	for _, sa := range w.Actors {
		if _, err := db.ActorByWallet(ctx, domain.NormalizeWallet(sa.Wallet)); err == nil {
			res.Skipped++
			continue
		}
		a := &domain.Actor{
			Wallet:     sa.Wallet,
			Name:       sa.Name,
			Level:      sa.Level,
			Health:     domain.MaxHealth,
			Energy:     domain.MaxEnergy,
			Experience: sa.Experience,
			LocationID: sa.LocationID,
			Status:     domain.ActorActive,
		}
		if sa.Health != nil {
			a.Health = *sa.Health
		}
		if sa.Energy != nil {
			a.Energy = *sa.Energy
		}
		if err := db.InsertActor(ctx, a); err != nil {
			return res, err
		}
		res.Actors++
	}
	return res, nil
}
