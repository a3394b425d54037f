package story

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/observability"
)

// Presenter receives fired milestones. It must eventually call Finish on the
// Playback for the milestone to complete.
type Presenter interface {
	Present(p *Playback)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(p *Playback)

func (f PresenterFunc) Present(p *Playback) { f(p) }

// Reason explains a TriggerResult.
type Reason string

const (
	ReasonFired              Reason = "FIRED"
	ReasonUnknownMilestone   Reason = "UNKNOWN_MILESTONE"
	ReasonAlreadyCompleted   Reason = "ALREADY_COMPLETED"
	ReasonInProgress         Reason = "IN_PROGRESS"
	ReasonPrerequisitesUnmet Reason = "PREREQUISITES_UNMET"
	ReasonConditionUnmet     Reason = "CONDITION_UNMET"
)

// TriggerResult is the outcome of one trigger attempt.
type TriggerResult struct {
	MilestoneID string `json:"milestoneId"`
	Fired       bool   `json:"fired"`
	Reason      Reason `json:"reason"`
}

// MilestoneStatus is one row of a session overview.
type MilestoneStatus struct {
	ID      string                `json:"id"`
	Trigger domain.TriggerKind    `json:"trigger"`
	OneTime bool                  `json:"oneTime"`
	State   domain.MilestoneState `json:"state"`
}

// Engine is one player's story session.
type Engine struct {
	mu          sync.Mutex
	registry    *Registry
	completions *CompletionSet
	presenter   Presenter
	effects     EffectHandler
	shown       map[string]*Playback
	now         func() time.Time
	log         *slog.Logger
}

// NewEngine creates a session. effects may be nil when choices carry no
// side effects worth applying.
func NewEngine(reg *Registry, completions *CompletionSet, presenter Presenter, effects EffectHandler) *Engine {
	if effects == nil {
		effects = noEffects{}
	}
	return &Engine{
		registry:    reg,
		completions: completions,
		presenter:   presenter,
		effects:     effects,
		shown:       make(map[string]*Playback),
		now:         time.Now,
		log:         observability.Component("story"),
	}
}

// CheckAndTrigger fires milestone id if it is eligible under tc. Checks run
// in order: known id, not already completed (one-time only), not currently
// shown, every prerequisite completed, condition met.
func (e *Engine) CheckAndTrigger(ctx context.Context, id string, tc TriggerContext) TriggerResult {
	res, pb := e.check(id, tc)
	observability.MilestoneTriggers.WithLabelValues(string(res.Reason)).Inc()
	if pb == nil {
		return res
	}

	e.log.Info("milestone fired", "milestone", id, "screens", len(pb.Screens))
	e.presenter.Present(pb)
	return res
}

func (e *Engine) check(id string, tc TriggerContext) (TriggerResult, *Playback) {
	res := TriggerResult{MilestoneID: id}

	m, ok := e.registry.Get(id)
	if !ok {
		res.Reason = ReasonUnknownMilestone
		return res, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m.OneTime && e.completions.Has(id) {
		res.Reason = ReasonAlreadyCompleted
		return res, nil
	}
	if _, showing := e.shown[id]; showing {
		res.Reason = ReasonInProgress
		return res, nil
	}
	for _, p := range m.Prerequisites {
		if !e.completions.Has(p) {
			res.Reason = ReasonPrerequisitesUnmet
			return res, nil
		}
	}
	if tc.Now.IsZero() {
		tc.Now = e.now()
	}
	if !conditionMet(m.Condition, tc) {
		res.Reason = ReasonConditionUnmet
		return res, nil
	}

	pb := newPlayback(m, e.effects, func(ctx context.Context) error {
		return e.complete(ctx, id)
	})
	e.shown[id] = pb
	res.Fired = true
	res.Reason = ReasonFired
	return res, pb
}

// complete is the Playback callback: SHOWN → COMPLETED.
func (e *Engine) complete(ctx context.Context, id string) error {
	if err := e.completions.Add(ctx, id); err != nil {
		e.log.Error("persist completion failed", "milestone", id, "error", err)
		return err
	}

	e.mu.Lock()
	delete(e.shown, id)
	e.mu.Unlock()

	observability.MilestonesCompleted.Inc()
	e.log.Info("milestone completed", "milestone", id)
	return nil
}

// OnEvent tries every milestone whose trigger kind matches tc.Kind, in
// registration order, and returns one result per attempt.
func (e *Engine) OnEvent(ctx context.Context, tc TriggerContext) []TriggerResult {
	var out []TriggerResult
	for _, m := range e.registry.ByTrigger(tc.Kind) {
		out = append(out, e.CheckAndTrigger(ctx, m.ID, tc))
	}
	return out
}

// State returns the lifecycle state of id for this player. Unknown ids are
// NOT_TRIGGERED.
func (e *Engine) State(id string) domain.MilestoneState {
	e.mu.Lock()
	_, showing := e.shown[id]
	e.mu.Unlock()

	switch {
	case showing:
		return domain.StateShown
	case e.completions.Has(id):
		return domain.StateCompleted
	default:
		return domain.StateNotTriggered
	}
}

// Playback returns the in-flight presentation of id, if any.
func (e *Engine) Playback(id string) (*Playback, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pb, ok := e.shown[id]
	return pb, ok
}

// Overview lists every registered milestone with its state.
func (e *Engine) Overview() []MilestoneStatus {
	all := e.registry.All()
	out := make([]MilestoneStatus, 0, len(all))
	for _, m := range all {
		out = append(out, MilestoneStatus{
			ID:      m.ID,
			Trigger: m.Trigger,
			OneTime: m.OneTime,
			State:   e.State(m.ID),
		})
	}
	return out
}

// Completed returns the ids this player has finished.
func (e *Engine) Completed() []string {
	return e.completions.IDs()
}
