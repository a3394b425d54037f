// Package domain contains pure game types with ZERO infrastructure imports.
// This is the innermost ring — app services and infra adapters depend on it,
// never the other way around.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Actor ──────────────────────────────────────────────────────────────────

// ActorStatus gates whether an actor may act at all.
type ActorStatus string

const (
	ActorActive  ActorStatus = "ACTIVE"
	ActorBanned  ActorStatus = "BANNED"
	ActorPending ActorStatus = "PENDING"
)

// Actor is a player-controlled character with mutable survival stats.
type Actor struct {
	ID         string      `json:"id" db:"id"`
	Wallet     string      `json:"wallet" db:"wallet"`
	Name       string      `json:"name" db:"name"`
	Level      int         `json:"level" db:"level"`
	Health     int         `json:"health" db:"health"`
	Energy     int         `json:"energy" db:"energy"`
	Experience int         `json:"experience" db:"experience"`
	LocationID string      `json:"locationId" db:"location_id"`
	Status     ActorStatus `json:"status" db:"status"`
	Version    int64       `json:"version" db:"version"` // bumped on every stats write
}

// Clamp forces stats back into their legal ranges.
// Used by admin edits; the resolver never produces out-of-range values.
func (a *Actor) Clamp() {
	if a.Level < 1 {
		a.Level = 1
	}
	a.Health = clamp(a.Health, 0, MaxHealth)
	a.Energy = clamp(a.Energy, 0, MaxEnergy)
	if a.Experience < 0 {
		a.Experience = 0
	}
}

const (
	MaxHealth = 100
	MaxEnergy = 100
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeWallet trims and lowercases a wallet address.
// Returns "" when the input is not a usable address.
func NormalizeWallet(w string) string {
	w = strings.ToLower(strings.TrimSpace(w))
	if w == "" || len(w) > 128 || strings.ContainsAny(w, " \t\r\n/") {
		return ""
	}
	return w
}

// ─── Reward Catalog ─────────────────────────────────────────────────────────

// Rarity tiers are ordered: COMMON < UNCOMMON < RARE < EPIC < LEGENDARY.
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

var rarityNames = [...]string{"COMMON", "UNCOMMON", "RARE", "EPIC", "LEGENDARY"}

// Rarities lists every tier in ascending order.
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary}

func (r Rarity) String() string {
	if r < RarityCommon || r > RarityLegendary {
		return fmt.Sprintf("Rarity(%d)", int(r))
	}
	return rarityNames[r]
}

// ParseRarity accepts the upper- or lower-case tier name.
func ParseRarity(s string) (Rarity, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range rarityNames {
		if name == up {
			return Rarity(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown rarity %q", ErrInvalidArgument, s)
}

func (r Rarity) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rarity) UnmarshalText(b []byte) error {
	v, err := ParseRarity(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Item is an immutable reward catalog entry.
type Item struct {
	ID          string `json:"id" db:"id" toml:"id"`
	Name        string `json:"name" db:"name" toml:"name"`
	Category    string `json:"category" db:"category" toml:"category"`
	Rarity      Rarity `json:"rarity" db:"rarity" toml:"rarity"`
	Description string `json:"description,omitempty" db:"description" toml:"description"`
	ImageURI    string `json:"imageUri,omitempty" db:"image_uri" toml:"image_uri"`
}

// ─── Locations & Actions ────────────────────────────────────────────────────

// ActionKind names a resource-gathering action.
type ActionKind string

const (
	ActionMine    ActionKind = "MINE"
	ActionForage  ActionKind = "FORAGE"
	ActionSalvage ActionKind = "SALVAGE"
)

// IsValid reports whether k is a known action kind.
func (k ActionKind) IsValid() bool {
	switch k {
	case ActionMine, ActionForage, ActionSalvage:
		return true
	default:
		return false
	}
}

// DefaultAction is used when a request omits the action kind.
const DefaultAction = ActionMine

// NormalizeAction upper-cases and trims s. Empty input gives DefaultAction.
// The result is not validated; see IsValid.
func NormalizeAction(s string) ActionKind {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultAction
	}
	return ActionKind(s)
}

// Location is a place where actions happen. RewardCategory selects the slice
// of the catalog that actions here can produce.
type Location struct {
	ID             string       `json:"id" db:"id" toml:"id"`
	Name           string       `json:"name" db:"name" toml:"name"`
	RewardCategory string       `json:"rewardCategory" db:"reward_category" toml:"reward_category"`
	Actions        []ActionKind `json:"actions" db:"-" toml:"actions"`
}

// Supports reports whether the location allows the given action.
func (l *Location) Supports(k ActionKind) bool {
	for _, a := range l.Actions {
		if a == k {
			return true
		}
	}
	return false
}

// ─── Inventory & Audit ──────────────────────────────────────────────────────

// InventoryLine is the single row per (actor, item) pair.
type InventoryLine struct {
	ActorID  string `json:"actorId" db:"actor_id"`
	ItemID   string `json:"itemId" db:"item_id"`
	Quantity int    `json:"quantity" db:"quantity"`
	Equipped bool   `json:"equipped" db:"equipped"`
}

// TransactionRecord is an append-only audit entry, one per resolved action.
type TransactionRecord struct {
	ID          string     `json:"id" db:"id"`
	ActorID     string     `json:"actorId" db:"actor_id"`
	Action      ActionKind `json:"action" db:"action"`
	ItemID      string     `json:"itemId,omitempty" db:"item_id"`
	Quantity    int        `json:"quantity" db:"quantity"`
	Description string     `json:"description" db:"description"`
	Cost        int        `json:"cost" db:"cost"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// ActionCommit is everything one resolved action writes, applied atomically:
// a compare-and-set energy debit, an optional inventory merge, and the audit
// record, in that order.
type ActionCommit struct {
	ActorID         string
	ExpectedVersion int64
	NewEnergy       int
	ItemID          string // empty when nothing was found
	Quantity        int
	Record          TransactionRecord
}
