// Package reward implements level-adjusted weighted selection over a
// reward catalog.
//
// Every item weighs as much as its rarity tier. Higher tiers grow with the
// actor's level:
//
//	scale  = min(level/10, MaxScale)
//	weight = base × (1 + scale × coef)      for RARE, EPIC, LEGENDARY
//
// A draw is one uniform integer in [0, Σweights) located by binary search
// over the cumulative weights. That is the same distribution as a pool
// holding each item weight-many times, without building the pool.
package reward

import (
	"math"
	"sort"

	"github.com/outpost-game/outpost/internal/domain"
)

// Source is the randomness a Selector needs. *math/rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

// Config holds the tier table. Coefficients are tuning constants, not derived.
type Config struct {
	BaseWeights map[domain.Rarity]int
	ScaleCoef   map[domain.Rarity]float64
	MaxScale    float64
}

// DefaultConfig returns the production drop table.
func DefaultConfig() Config {
	return Config{
		BaseWeights: map[domain.Rarity]int{
			domain.RarityCommon:    60,
			domain.RarityUncommon:  25,
			domain.RarityRare:      10,
			domain.RarityEpic:      4,
			domain.RarityLegendary: 1,
		},
		ScaleCoef: map[domain.Rarity]float64{
			domain.RarityRare:      0.5,
			domain.RarityEpic:      0.75,
			domain.RarityLegendary: 1.0,
		},
		MaxScale: 3,
	}
}

// Selector draws rewards. It holds no mutable state of its own.
type Selector struct {
	cfg Config
}

// NewSelector creates a Selector.
func NewSelector(cfg Config) *Selector {
	return &Selector{cfg: cfg}
}

// TierWeights returns the effective integer weight of every tier at level.
func (s *Selector) TierWeights(level int) map[domain.Rarity]int {
	scale := math.Min(float64(level)/10, s.cfg.MaxScale)
	if scale < 0 {
		scale = 0
	}
	out := make(map[domain.Rarity]int, len(domain.Rarities))
	for _, r := range domain.Rarities {
		base := s.cfg.BaseWeights[r]
		w := int(math.Floor(float64(base) * (1 + scale*s.cfg.ScaleCoef[r])))
		if w < 1 {
			w = 1
		}
		out[r] = w
	}
	return out
}

// Pick draws one item from catalog. Returns nil for an empty catalog.
func (s *Selector) Pick(src Source, catalog []domain.Item, level int) *domain.Item {
	if len(catalog) == 0 {
		return nil
	}
	weights := s.TierWeights(level)

	cumulative := make([]int, len(catalog))
	total := 0
	for i, it := range catalog {
		w, ok := weights[it.Rarity]
		if !ok {
			w = 1
		}
		total += w
		cumulative[i] = total
	}

	r := src.Intn(total)
	idx := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
	item := catalog[idx]
	return &item
}
