// Package story gates narrative milestones behind progression triggers and
// prerequisite graphs.
//
// Per (player, milestone) the lifecycle is NOT_TRIGGERED → SHOWN → COMPLETED.
// An Engine is one player's session: it owns that player's CompletionSet and
// hands fired milestones to a Presenter as a Playback. Finishing the Playback
// is the only way to reach COMPLETED.
//
// Nothing here fails on unknown ids or broken prerequisite graphs. A trigger
// that does not fire reports why through TriggerResult.Reason.
package story

import (
	"log/slog"
	"sync"

	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/observability"
)

// Registry holds the static milestone set, in registration order.
// It is shared by every session in the process.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]domain.Milestone
	log   *slog.Logger
}

// NewRegistry creates a registry holding ms. Duplicates are dropped.
func NewRegistry(ms ...domain.Milestone) *Registry {
	r := &Registry{
		byID: make(map[string]domain.Milestone),
		log:  observability.Component("story"),
	}
	for _, m := range ms {
		r.Register(m)
	}
	return r
}

// Register adds m. A milestone with an empty or already registered id is
// ignored with a warning, and Register reports false.
func (r *Registry) Register(m domain.Milestone) bool {
	if m.ID == "" {
		r.log.Warn("milestone without id ignored")
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[m.ID]; dup {
		r.log.Warn("duplicate milestone ignored", "milestone", m.ID)
		return false
	}
	r.byID[m.ID] = m
	r.order = append(r.order, m.ID)
	return true
}

// Get returns the milestone registered under id.
func (r *Registry) Get(id string) (domain.Milestone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// All returns every milestone in registration order.
func (r *Registry) All() []domain.Milestone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Milestone, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// ByTrigger returns the milestones with trigger kind k, in registration order.
func (r *Registry) ByTrigger(k domain.TriggerKind) []domain.Milestone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Milestone
	for _, id := range r.order {
		if m := r.byID[id]; m.Trigger == k {
			out = append(out, m)
		}
	}
	return out
}

// Len returns the number of registered milestones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
