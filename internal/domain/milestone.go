package domain

import (
	"fmt"
	"strings"
	"time"
)

// ─── Milestones ─────────────────────────────────────────────────────────────
// Milestones are static narrative beats registered once at startup.
// They are never mutated after registration.

// TriggerKind names the game-loop event family that can fire a milestone.
type TriggerKind string

const (
	TriggerLevel    TriggerKind = "LEVEL"
	TriggerLocation TriggerKind = "LOCATION"
	TriggerItem     TriggerKind = "ITEM"
	TriggerAction   TriggerKind = "ACTION"
	TriggerTime     TriggerKind = "TIME"
	TriggerManual   TriggerKind = "MANUAL"
)

// ParseTriggerKind validates a trigger kind name.
func ParseTriggerKind(s string) (TriggerKind, error) {
	k := TriggerKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case TriggerLevel, TriggerLocation, TriggerItem, TriggerAction, TriggerTime, TriggerManual:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown trigger kind %q", ErrInvalidArgument, s)
}

// Condition is a tagged variant: exactly one concrete type per trigger kind.
type Condition interface {
	Kind() TriggerKind
}

type LevelCondition struct{ Threshold int }
type LocationCondition struct{ LocationID string }
type ItemCondition struct{ ItemID string }
type ActionCondition struct{ Action ActionKind }
type TimeCondition struct{ After time.Time }
type ManualCondition struct{}

func (LevelCondition) Kind() TriggerKind    { return TriggerLevel }
func (LocationCondition) Kind() TriggerKind { return TriggerLocation }
func (ItemCondition) Kind() TriggerKind     { return TriggerItem }
func (ActionCondition) Kind() TriggerKind   { return TriggerAction }
func (TimeCondition) Kind() TriggerKind     { return TriggerTime }
func (ManualCondition) Kind() TriggerKind   { return TriggerManual }

// ScreenKind distinguishes plain narrative from forced choices.
type ScreenKind string

const (
	ScreenNarrative ScreenKind = "NARRATIVE"
	ScreenChoice    ScreenKind = "CHOICE"
)

// EffectKind is the side effect a choice carries.
type EffectKind string

const (
	EffectNone    EffectKind = "NONE"
	EffectSetFlag EffectKind = "SET_FLAG"
	EffectGrant   EffectKind = "GRANT_ITEM"
)

// Effect is applied when a player picks a choice. Milestone state never
// depends on it.
type Effect struct {
	Kind  EffectKind `json:"kind" toml:"kind"`
	Key   string     `json:"key,omitempty" toml:"key"`
	Value string     `json:"value,omitempty" toml:"value"`
}

// Choice is one option on a choice screen.
type Choice struct {
	Label  string `json:"label" toml:"label"`
	Effect Effect `json:"effect" toml:"effect"`
}

// Screen is one page of a milestone's narrative sequence.
type Screen struct {
	Kind    ScreenKind `json:"kind" toml:"kind"`
	Title   string     `json:"title,omitempty" toml:"title"`
	Text    string     `json:"text" toml:"text"`
	Image   string     `json:"image,omitempty" toml:"image"`
	Choices []Choice   `json:"choices,omitempty" toml:"choices"`
}

// IsChoice reports whether the player must pick an option to continue.
func (s Screen) IsChoice() bool { return s.Kind == ScreenChoice && len(s.Choices) > 0 }

// Milestone is a one-time or repeatable narrative beat.
type Milestone struct {
	ID            string
	Trigger       TriggerKind
	Condition     Condition // nil means the trigger kind alone is enough
	Screens       []Screen
	OneTime       bool
	Prerequisites []string
}

// MilestoneState is the per (player, milestone) lifecycle.
// COMPLETED is terminal and only reachable through SHOWN.
type MilestoneState string

const (
	StateNotTriggered MilestoneState = "NOT_TRIGGERED"
	StateShown        MilestoneState = "SHOWN"
	StateCompleted    MilestoneState = "COMPLETED"
)
