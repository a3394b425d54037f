package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the app layer depends on them.

// ActionStore is the persistence collaborator of the action resolver.
type ActionStore interface {
	// ActorByWallet returns ErrNotFound when no actor owns the wallet.
	ActorByWallet(ctx context.Context, wallet string) (*Actor, error)

	// Location returns ErrNotFound for unknown ids.
	Location(ctx context.Context, id string) (*Location, error)

	// CatalogByCategory returns every item in a category, possibly none.
	CatalogByCategory(ctx context.Context, category string) ([]Item, error)

	// CommitAction applies c in one transaction and returns the merged
	// inventory line (nil when c.ItemID is empty). A stale
	// c.ExpectedVersion yields ErrVersionConflict and nothing is written.
	CommitAction(ctx context.Context, c ActionCommit) (*InventoryLine, error)
}

// KVStore is the durable key-value collaborator behind completion sets.
type KVStore interface {
	// Get returns ok=false when the key has never been set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}
