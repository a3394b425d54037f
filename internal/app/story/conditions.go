package story

import (
	"time"

	"github.com/outpost-game/outpost/internal/domain"
)

// TriggerContext is the game-state snapshot a trigger is evaluated against.
// Kind is the event family for OnEvent; CheckAndTrigger ignores it.
type TriggerContext struct {
	Kind       domain.TriggerKind `json:"kind,omitempty"`
	Level      int                `json:"level,omitempty"`
	LocationID string             `json:"locationId,omitempty"`
	ItemID     string             `json:"itemId,omitempty"`
	Action     domain.ActionKind  `json:"action,omitempty"`
	Now        time.Time          `json:"now,omitempty"`
}

// conditionMet dispatches on the condition variant. A nil condition is met.
func conditionMet(c domain.Condition, tc TriggerContext) bool {
	switch c := c.(type) {
	case nil:
		return true
	case domain.LevelCondition:
		return tc.Level >= c.Threshold
	case domain.LocationCondition:
		return tc.LocationID == c.LocationID
	case domain.ItemCondition:
		return tc.ItemID == c.ItemID
	case domain.ActionCondition:
		return tc.Action == c.Action
	case domain.TimeCondition:
		return !tc.Now.Before(c.After)
	case domain.ManualCondition:
		return true
	default:
		return false
	}
}
