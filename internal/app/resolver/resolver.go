// Package resolver runs one resource-gathering action end to end.
//
// The lifecycle of a call:
//  1. Validate the request (wallet, action kind)
//  2. Check preconditions in order: actor active, energy ≥ cost,
//     location exists, location supports the action
//  3. Roll success, then draw a reward on success
//  4. Commit atomically: CAS energy debit → inventory merge → audit record
//
// A stale actor version is retried once from step 2; a second miss fails
// with ErrConflict. Nothing is retried after a storage failure.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outpost-game/outpost/internal/app/reward"
	"github.com/outpost-game/outpost/internal/app/stats"
	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/observability"
)

// Config controls resolver behavior.
type Config struct {
	Stats           stats.Params
	Rewards         reward.Config
	ConflictRetries int // re-read/recompute attempts after a version miss (default: 1)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Stats:           stats.DefaultParams(),
		Rewards:         reward.DefaultConfig(),
		ConflictRetries: 1,
	}
}

// ActionRequest is one "attempt action for wallet W" call.
type ActionRequest struct {
	Wallet     string            `json:"walletAddress"`
	LocationID string            `json:"locationId,omitempty"`
	Action     domain.ActionKind `json:"action,omitempty"`
}

// FoundItem describes a reward that was granted.
type FoundItem struct {
	Item     domain.Item `json:"item"`
	Quantity int         `json:"quantity"` // granted by this action
	Total    int         `json:"total"`    // held after the merge
}

// ActionResult is returned for every resolved call, reward or not.
type ActionResult struct {
	Success            bool              `json:"success"`
	Action             domain.ActionKind `json:"action"`
	LocationID         string            `json:"locationId"`
	Actor              domain.Actor      `json:"actor"`
	Found              *FoundItem        `json:"found"`
	Cost               int               `json:"cost"`
	Capacity           int               `json:"capacity"`
	SuccessRatePercent int               `json:"successRatePercent"`
	Message            string            `json:"message"`
	TransactionID      string            `json:"transactionId"`
}

// Resolver orchestrates actions against an ActionStore.
type Resolver struct {
	mu       sync.RWMutex
	config   Config
	store    domain.ActionStore
	selector *reward.Selector
	rng      Random
	now      func() time.Time
	log      *slog.Logger

	resolved  int64
	found     int64
	rejected  int64
	conflicts int64
}

// New creates a resolver. rng must be safe for concurrent use; see NewRandom.
func New(cfg Config, store domain.ActionStore, rng Random) *Resolver {
	return &Resolver{
		config:   cfg,
		store:    store,
		selector: reward.NewSelector(cfg.Rewards),
		rng:      rng,
		now:      func() time.Time { return time.Now().UTC() },
		log:      observability.Component("resolver"),
	}
}

// Config returns the active configuration.
func (r *Resolver) Config() Config { return r.config }

// Resolve performs one action for req.Wallet.
func (r *Resolver) Resolve(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	started := time.Now()
	action := domain.NormalizeAction(string(req.Action))

	res, err := r.resolve(ctx, req, action)
	if err != nil {
		err = domain.AsActionError(err)
	}

	switch {
	case err != nil:
		r.count(&r.rejected)
		observability.ObserveResolve(string(action), string(domain.KindOf(err)), 0, started)
		if domain.KindOf(err) == domain.KindStorage {
			r.log.Error("resolve failed", "wallet", req.Wallet, "error", err)
		}
	case res.Found != nil:
		r.count(&r.resolved)
		r.count(&r.found)
		observability.ObserveResolve(string(action), "found", res.Cost, started)
	default:
		r.count(&r.resolved)
		observability.ObserveResolve(string(action), "empty", res.Cost, started)
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, req ActionRequest, action domain.ActionKind) (*ActionResult, error) {
	wallet := domain.NormalizeWallet(req.Wallet)
	if wallet == "" {
		return nil, domain.NewActionError(domain.KindInvalidArgument, "wallet address is required")
	}
	if !action.IsValid() {
		return nil, domain.NewActionError(domain.KindInvalidArgument, "unknown action %q", req.Action)
	}
	locationID := strings.TrimSpace(req.LocationID)

	for attempt := 0; ; attempt++ {
		res, err := r.attempt(ctx, wallet, locationID, action)
		if !errors.Is(err, domain.ErrVersionConflict) {
			return res, err
		}
		r.count(&r.conflicts)
		observability.VersionConflicts.Inc()
		if attempt >= r.config.ConflictRetries {
			return nil, domain.NewActionError(domain.KindConflict, "actor for %s changed during resolution", wallet)
		}
		r.log.Debug("actor version moved, retrying", "wallet", wallet, "attempt", attempt+1)
	}
}

// attempt is one read → check → roll → commit pass.
func (r *Resolver) attempt(ctx context.Context, wallet, locationID string, action domain.ActionKind) (*ActionResult, error) {
	actor, err := r.store.ActorByWallet(ctx, wallet)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no actor for wallet %s", domain.ErrNotFound, wallet)
		}
		return nil, domain.Storage("load actor", err)
	}
	if actor.Status != domain.ActorActive {
		return nil, fmt.Errorf("%w: actor %s is %s", domain.ErrNotFound, actor.ID, actor.Status)
	}

	derived := stats.Derive(r.config.Stats, *actor)
	if actor.Energy < derived.Cost {
		return nil, &domain.InsufficientResourceError{
			Energy:   actor.Energy,
			Cost:     derived.Cost,
			Capacity: derived.Capacity,
		}
	}

	if locationID == "" {
		locationID = actor.LocationID
	}
	if locationID == "" {
		return nil, fmt.Errorf("%w: actor %s has no location", domain.ErrNotFound, actor.ID)
	}
	loc, err := r.store.Location(ctx, locationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: location %s", domain.ErrNotFound, locationID)
		}
		return nil, domain.Storage("load location", err)
	}
	if !loc.Supports(action) {
		return nil, fmt.Errorf("%w: %s is not possible at %s", domain.ErrActionUnavailable, action, loc.ID)
	}

	prob := stats.SuccessProbability(r.config.Stats, *actor)
	var item *domain.Item
	if r.rng.Float64() < prob {
		catalog, err := r.store.CatalogByCategory(ctx, loc.RewardCategory)
		if err != nil {
			return nil, domain.Storage("load catalog", err)
		}
		item = r.selector.Pick(r.rng, catalog, actor.Level)
	}

	commit := domain.ActionCommit{
		ActorID:         actor.ID,
		ExpectedVersion: actor.Version,
		NewEnergy:       actor.Energy - derived.Cost,
		Record: domain.TransactionRecord{
			ID:        uuid.NewString(),
			ActorID:   actor.ID,
			Action:    action,
			Cost:      derived.Cost,
			CreatedAt: r.now(),
		},
	}
	if item != nil {
		commit.ItemID = item.ID
		commit.Quantity = 1
		commit.Record.ItemID = item.ID
		commit.Record.Quantity = 1
		commit.Record.Description = fmt.Sprintf("%s at %s: found %s (%s), cost %d energy, success rate %d%%",
			action, loc.Name, item.Name, item.Rarity, derived.Cost, derived.SuccessRatePercent)
	} else {
		commit.Record.Description = fmt.Sprintf("%s at %s: nothing found, cost %d energy, success rate %d%%",
			action, loc.Name, derived.Cost, derived.SuccessRatePercent)
	}

	line, err := r.store.CommitAction(ctx, commit)
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
		return nil, domain.Storage("commit action", err)
	}

	after := *actor
	after.Energy = commit.NewEnergy
	after.Version++

	res := &ActionResult{
		Success:            true,
		Action:             action,
		LocationID:         loc.ID,
		Actor:              after,
		Cost:               derived.Cost,
		Capacity:           derived.Capacity,
		SuccessRatePercent: derived.SuccessRatePercent,
		TransactionID:      commit.Record.ID,
	}
	if item != nil {
		total := commit.Quantity
		if line != nil {
			total = line.Quantity
		}
		res.Found = &FoundItem{Item: *item, Quantity: commit.Quantity, Total: total}
		res.Message = fmt.Sprintf("You found %s!", item.Name)
		observability.RewardsDrawn.WithLabelValues(item.Rarity.String()).Inc()
	} else {
		res.Message = "You searched but found nothing."
	}

	r.log.Info("action resolved",
		"wallet", wallet,
		"action", action,
		"location", loc.ID,
		"cost", derived.Cost,
		"energy", after.Energy,
		"found", commit.ItemID,
	)
	return res, nil
}

func (r *Resolver) count(n *int64) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}

// Stats returns resolver statistics.
type Stats struct {
	Resolved  int64 `json:"resolved"`
	Found     int64 `json:"found"`
	Rejected  int64 `json:"rejected"`
	Conflicts int64 `json:"conflicts"`
}

// Stats returns current resolver statistics.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Resolved:  r.resolved,
		Found:     r.found,
		Rejected:  r.rejected,
		Conflicts: r.conflicts,
	}
}
