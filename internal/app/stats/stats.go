// Package stats derives action cost, resource capacity and success
// probability from an actor snapshot.
//
//	cost     = max(base − ⌊level/step⌋, min) × (1.5 if health < 50)
//	capacity = ⌊base + level×tech + (health/100)×hf + min(exp/div, cap)⌋
//	success  = clamp(base + levelBonus + expBonus − injuredPenalty, floor, 1.0)
//
// Every function is pure: same Params and Actor in, same number out.
package stats

import (
	"math"

	"github.com/outpost-game/outpost/internal/domain"
)

// Params holds the tunable constants. Zero values are not meaningful;
// start from DefaultParams.
type Params struct {
	// Cost
	BaseCost          int     `toml:"base_cost"`
	EfficiencyStep    int     `toml:"efficiency_step"` // one point off per this many levels
	MinCost           int     `toml:"min_cost"`
	InjuredBelow      int     `toml:"injured_below"` // health threshold for the penalty
	InjuredMultiplier float64 `toml:"injured_multiplier"`

	// Capacity
	BaseCapacity float64 `toml:"base_capacity"`
	TechFactor   float64 `toml:"tech_factor"`
	HealthFactor float64 `toml:"health_factor"`
	ExpDivisor   float64 `toml:"exp_divisor"`
	ExpCap       float64 `toml:"exp_cap"`

	// Success
	BaseRate        float64 `toml:"base_rate"`
	LevelBonusStep  float64 `toml:"level_bonus_step"`
	LevelBonusCap   float64 `toml:"level_bonus_cap"`
	ExpBonusDivisor float64 `toml:"exp_bonus_divisor"`
	ExpBonusCap     float64 `toml:"exp_bonus_cap"`
	InjuredPenalty  float64 `toml:"injured_penalty"`
	MinRate         float64 `toml:"min_rate"`
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		BaseCost:          10,
		EfficiencyStep:    5,
		MinCost:           5,
		InjuredBelow:      50,
		InjuredMultiplier: 1.5,

		BaseCapacity: 50,
		TechFactor:   2,
		HealthFactor: 20,
		ExpDivisor:   100,
		ExpCap:       20,

		BaseRate:        0.5,
		LevelBonusStep:  0.01,
		LevelBonusCap:   0.25,
		ExpBonusDivisor: 10_000,
		ExpBonusCap:     0.15,
		InjuredPenalty:  0.2,
		MinRate:         0.3,
	}
}

func (p Params) injured(a domain.Actor) bool { return a.Health < p.InjuredBelow }

// ActionCost returns the energy one action costs. Never below MinCost.
func ActionCost(p Params, a domain.Actor) int {
	reduction := 0
	if p.EfficiencyStep > 0 && a.Level > 0 {
		reduction = a.Level / p.EfficiencyStep
	}
	cost := p.BaseCost - reduction
	if cost < p.MinCost {
		cost = p.MinCost
	}
	if p.injured(a) {
		cost = int(math.Floor(float64(cost) * p.InjuredMultiplier))
	}
	if cost < p.MinCost {
		cost = p.MinCost
	}
	return cost
}

// ResourceCapacity returns the actor's energy ceiling for display.
func ResourceCapacity(p Params, a domain.Actor) int {
	exp := 0.0
	if p.ExpDivisor > 0 {
		exp = math.Min(float64(max(a.Experience, 0))/p.ExpDivisor, p.ExpCap)
	}
	c := p.BaseCapacity +
		float64(a.Level)*p.TechFactor +
		float64(a.Health)/100*p.HealthFactor +
		exp
	return int(math.Floor(c))
}

// SuccessProbability returns the chance in [MinRate, 1.0] that an action
// yields a reward roll.
func SuccessProbability(p Params, a domain.Actor) float64 {
	prob := p.BaseRate
	prob += math.Min(float64(a.Level)*p.LevelBonusStep, p.LevelBonusCap)
	if p.ExpBonusDivisor > 0 {
		prob += math.Min(float64(max(a.Experience, 0))/p.ExpBonusDivisor, p.ExpBonusCap)
	}
	if p.injured(a) {
		prob -= p.InjuredPenalty
	}
	return math.Max(p.MinRate, math.Min(1.0, prob))
}

// SuccessPercent renders a probability as a whole percentage.
func SuccessPercent(prob float64) int {
	return int(math.Round(prob * 100))
}

// Snapshot bundles every derived figure for one actor.
type Snapshot struct {
	Cost               int `json:"cost"`
	Capacity           int `json:"capacity"`
	SuccessRatePercent int `json:"successRatePercent"`
}

// Derive computes a Snapshot.
func Derive(p Params, a domain.Actor) Snapshot {
	return Snapshot{
		Cost:               ActionCost(p, a),
		Capacity:           ResourceCapacity(p, a),
		SuccessRatePercent: SuccessPercent(SuccessProbability(p, a)),
	}
}
