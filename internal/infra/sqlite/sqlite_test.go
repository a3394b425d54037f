package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/outpost-game/outpost/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedBasics creates a quarry, two ore items and one actor.
func seedBasics(t *testing.T, db *DB) *domain.Actor {
	t.Helper()
	ctx := context.Background()
	for _, it := range []domain.Item{
		{ID: "copper-ore", Name: "Copper Ore", Category: "ore", Rarity: domain.RarityUncommon},
		{ID: "flint", Name: "Flint", Category: "ore", Rarity: domain.RarityCommon},
		{ID: "mushroom", Name: "Mushroom", Category: "forage", Rarity: domain.RarityCommon},
	} {
		if err := db.UpsertItem(ctx, it); err != nil {
			t.Fatalf("UpsertItem(%s) error: %v", it.ID, err)
		}
	}
	if err := db.UpsertLocation(ctx, domain.Location{
		ID: "quarry", Name: "Old Quarry", RewardCategory: "ore",
		Actions: []domain.ActionKind{domain.ActionMine},
	}); err != nil {
		t.Fatalf("UpsertLocation() error: %v", err)
	}
	a := &domain.Actor{Wallet: "0xABC", Level: 3, Health: 90, Energy: 40, LocationID: "quarry"}
	if err := db.InsertActor(ctx, a); err != nil {
		t.Fatalf("InsertActor() error: %v", err)
	}
	return a
}

// ─── Open / Migrate ─────────────────────────────────────────────────────────

func TestOpen_CreatesFileAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
	// Re-open runs migrations again without error.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("re-Open() error: %v", err)
	}
	db.Close()
}

// ─── Actors ─────────────────────────────────────────────────────────────────

func TestActorByWallet(t *testing.T) {
	db := newTestDB(t)
	inserted := seedBasics(t, db)

	got, err := db.ActorByWallet(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("ActorByWallet() error: %v", err)
	}
	if got.ID != inserted.ID {
		t.Errorf("ID = %q, want %q", got.ID, inserted.ID)
	}
	if got.Status != domain.ActorActive {
		t.Errorf("Status = %s, want ACTIVE", got.Status)
	}
	if got.Energy != 40 || got.Level != 3 {
		t.Errorf("stats = %+v", got)
	}
}

func TestActorByWallet_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.ActorByWallet(context.Background(), "0xnobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertActor_RequiresWallet(t *testing.T) {
	db := newTestDB(t)
	err := db.InsertActor(context.Background(), &domain.Actor{Wallet: "  "})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetActorStats_BumpsVersionAndClamps(t *testing.T) {
	db := newTestDB(t)
	seedBasics(t, db)
	ctx := context.Background()

	energy, health := 250, 30
	got, err := db.SetActorStats(ctx, "0xabc", StatsEdit{Energy: &energy, Health: &health})
	if err != nil {
		t.Fatalf("SetActorStats() error: %v", err)
	}
	if got.Energy != domain.MaxEnergy {
		t.Errorf("Energy = %d, want clamped %d", got.Energy, domain.MaxEnergy)
	}
	if got.Health != 30 {
		t.Errorf("Health = %d, want 30", got.Health)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}

	if _, err := db.SetActorStats(ctx, "0xmissing", StatsEdit{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing wallet err = %v, want ErrNotFound", err)
	}
}

// ─── World ──────────────────────────────────────────────────────────────────

func TestLocation_WithActions(t *testing.T) {
	db := newTestDB(t)
	seedBasics(t, db)
	ctx := context.Background()

	loc, err := db.Location(ctx, "quarry")
	if err != nil {
		t.Fatalf("Location() error: %v", err)
	}
	if !loc.Supports(domain.ActionMine) || loc.Supports(domain.ActionForage) {
		t.Errorf("actions = %v, want [MINE]", loc.Actions)
	}

	// Replacing actions drops the old set.
	loc.Actions = []domain.ActionKind{domain.ActionForage, domain.ActionSalvage}
	if err := db.UpsertLocation(ctx, *loc); err != nil {
		t.Fatal(err)
	}
	loc, _ = db.Location(ctx, "quarry")
	if loc.Supports(domain.ActionMine) || len(loc.Actions) != 2 {
		t.Errorf("actions after replace = %v", loc.Actions)
	}

	if _, err := db.Location(ctx, "atlantis"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown location err = %v, want ErrNotFound", err)
	}
}

func TestCatalogByCategory(t *testing.T) {
	db := newTestDB(t)
	seedBasics(t, db)

	items, err := db.CatalogByCategory(context.Background(), "ore")
	if err != nil {
		t.Fatalf("CatalogByCategory() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != "copper-ore" || items[0].Rarity != domain.RarityUncommon {
		t.Errorf("items[0] = %+v", items[0])
	}

	empty, err := db.CatalogByCategory(context.Background(), "gems")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty category = %v, %v", empty, err)
	}
}

// ─── CommitAction ───────────────────────────────────────────────────────────

func commitFor(a *domain.Actor, itemID string, newEnergy int) domain.ActionCommit {
	c := domain.ActionCommit{
		ActorID:         a.ID,
		ExpectedVersion: a.Version,
		NewEnergy:       newEnergy,
		ItemID:          itemID,
		Record: domain.TransactionRecord{
			ID:          uuid.NewString(),
			ActorID:     a.ID,
			Action:      domain.ActionMine,
			ItemID:      itemID,
			Description: "test",
			Cost:        10,
			CreatedAt:   time.Now().UTC(),
		},
	}
	if itemID != "" {
		c.Quantity = 1
		c.Record.Quantity = 1
	}
	return c
}

func TestCommitAction_MergesInventory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedBasics(t, db)

	for i, wantQty := range []int{1, 2, 3} {
		a, _ := db.ActorByWallet(ctx, "0xabc")
		line, err := db.CommitAction(ctx, commitFor(a, "copper-ore", a.Energy-10))
		if err != nil {
			t.Fatalf("commit %d error: %v", i, err)
		}
		if line == nil || line.Quantity != wantQty {
			t.Fatalf("commit %d line = %+v, want quantity %d", i, line, wantQty)
		}
	}

	a, _ := db.ActorByWallet(ctx, "0xabc")
	lines, err := db.Inventory(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("inventory lines = %d, want exactly 1", len(lines))
	}
	if n, _ := db.CountInventory(ctx, a.ID, "copper-ore"); n != 3 {
		t.Errorf("CountInventory = %d, want 3", n)
	}
	if a.Energy != 10 || a.Version != 3 {
		t.Errorf("actor after 3 commits = energy %d version %d, want 10 / 3", a.Energy, a.Version)
	}
	if n, _ := db.CountTransactions(ctx, a.ID); n != 3 {
		t.Errorf("transactions = %d, want 3", n)
	}
}

func TestCommitAction_NoItemStillRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedBasics(t, db)

	line, err := db.CommitAction(ctx, commitFor(a, "", 30))
	if err != nil {
		t.Fatalf("CommitAction() error: %v", err)
	}
	if line != nil {
		t.Errorf("line = %+v, want nil", line)
	}
	lines, _ := db.Inventory(ctx, a.ID)
	if len(lines) != 0 {
		t.Errorf("inventory = %v, want empty", lines)
	}
	recs, err := db.Transactions(ctx, a.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ItemID != "" || recs[0].Cost != 10 {
		t.Errorf("records = %+v", recs)
	}
}

func TestCommitAction_StaleVersionWritesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedBasics(t, db)

	stale := commitFor(a, "copper-ore", 30)
	if _, err := db.CommitAction(ctx, commitFor(a, "", 30)); err != nil {
		t.Fatal(err)
	}

	_, err := db.CommitAction(ctx, stale)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
	if n, _ := db.CountInventory(ctx, a.ID, "copper-ore"); n != 0 {
		t.Errorf("inventory written despite conflict: %d", n)
	}
	if n, _ := db.CountTransactions(ctx, a.ID); n != 1 {
		t.Errorf("transactions = %d, want 1", n)
	}
}

func TestCommitAction_RejectsNegativeEnergy(t *testing.T) {
	db := newTestDB(t)
	a := seedBasics(t, db)
	_, err := db.CommitAction(context.Background(), commitFor(a, "", -1))
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSetEquipped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedBasics(t, db)

	if err := db.SetEquipped(ctx, a.ID, "copper-ore", true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("equip missing line err = %v, want ErrNotFound", err)
	}
	if _, err := db.CommitAction(ctx, commitFor(a, "copper-ore", 30)); err != nil {
		t.Fatal(err)
	}
	if err := db.SetEquipped(ctx, a.ID, "copper-ore", true); err != nil {
		t.Fatalf("SetEquipped() error: %v", err)
	}
	lines, _ := db.Inventory(ctx, a.ID)
	if len(lines) != 1 || !lines[0].Equipped {
		t.Errorf("lines = %+v, want equipped", lines)
	}
}

func TestSetEquipped_FailureIsNotNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedBasics(t, db)
	if _, err := db.CommitAction(ctx, commitFor(a, "copper-ore", 30)); err != nil {
		t.Fatal(err)
	}
	db.Close()

	err := db.SetEquipped(ctx, a.ID, "copper-ore", false)
	if err == nil {
		t.Fatal("expected an error on a closed database")
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, a driver failure must not read as ErrNotFound", err)
	}
}

// ─── KV ─────────────────────────────────────────────────────────────────────

func TestKV_GetSet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, ok, err := db.Get(ctx, "story:completed:0xabc"); err != nil || ok {
		t.Fatalf("Get(unset) = ok %v err %v", ok, err)
	}
	if err := db.Set(ctx, "k", `["intro"]`); err != nil {
		t.Fatal(err)
	}
	if err := db.Set(ctx, "k", `["intro","mine"]`); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Get(ctx, "k")
	if err != nil || !ok || v != `["intro","mine"]` {
		t.Errorf("Get = %q %v %v", v, ok, err)
	}
}

// ─── Seed ───────────────────────────────────────────────────────────────────

const worldTOML = `
[[items]]
id = "copper-ore"
name = "Copper Ore"
category = "ore"
rarity = "UNCOMMON"

[[items]]
id = "starstone"
name = "Starstone"
category = "ore"
rarity = "legendary"

[[locations]]
id = "quarry"
name = "Old Quarry"
reward_category = "ore"
actions = ["MINE"]

[[actors]]
wallet = "0xFEED"
name = "Rook"
level = 12
energy = 10
experience = 500
location_id = "quarry"
`

func TestLoadAndApplyWorld(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "world.toml")
	if err := os.WriteFile(path, []byte(worldTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := LoadWorldFile(path)
	if err != nil {
		t.Fatalf("LoadWorldFile() error: %v", err)
	}
	if w.Items[1].Rarity != domain.RarityLegendary {
		t.Errorf("rarity = %s, want LEGENDARY", w.Items[1].Rarity)
	}

	res, err := db.ApplyWorld(ctx, w)
	if err != nil {
		t.Fatalf("ApplyWorld() error: %v", err)
	}
	if res.Items != 2 || res.Locations != 1 || res.Actors != 1 {
		t.Errorf("result = %+v", res)
	}

	a, err := db.ActorByWallet(ctx, "0xfeed")
	if err != nil {
		t.Fatal(err)
	}
	if a.Level != 12 || a.Energy != 10 || a.Health != 100 {
		t.Errorf("seeded actor = %+v", a)
	}

	// Applying again leaves the existing actor alone.
	res, err = db.ApplyWorld(ctx, w)
	if err != nil {
		t.Fatal(err)
	}
	if res.Actors != 0 || res.Skipped != 1 {
		t.Errorf("second apply = %+v", res)
	}
}

func TestLoadWorldFile_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[[items]]\nid = \"x\"\ncolour = \"red\"\n"), 0o644)
	if _, err := LoadWorldFile(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestGrantItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := seedBasics(t, db)

	line, err := db.GrantItem(ctx, "0xabc", "flint", 2)
	if err != nil {
		t.Fatalf("GrantItem() error: %v", err)
	}
	if line.Quantity != 2 {
		t.Errorf("Quantity = %d, want 2", line.Quantity)
	}
	if _, err := db.GrantItem(ctx, "0xabc", "unobtainium", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown item err = %v", err)
	}
	if _, err := db.GrantItem(ctx, "0xnobody", "flint", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown wallet err = %v", err)
	}
	after, _ := db.ActorByWallet(ctx, "0xabc")
	if after.Version != a.Version {
		t.Errorf("grant bumped version to %d", after.Version)
	}
}
