package story

import (
	"context"
	"fmt"
	"sync"

	"github.com/outpost-game/outpost/internal/domain"
)

// EffectHandler applies the side effect of a picked choice.
type EffectHandler interface {
	ApplyEffect(ctx context.Context, milestoneID string, e domain.Effect) error
}

// EffectFunc adapts a function to EffectHandler.
type EffectFunc func(ctx context.Context, milestoneID string, e domain.Effect) error

func (f EffectFunc) ApplyEffect(ctx context.Context, milestoneID string, e domain.Effect) error {
	return f(ctx, milestoneID, e)
}

type noEffects struct{}

func (noEffects) ApplyEffect(context.Context, string, domain.Effect) error { return nil }

// Playback is one presentation of a fired milestone. The presenter walks the
// screens, calls Choose on every choice screen, then calls Finish once the
// player continues past the last screen.
type Playback struct {
	MilestoneID string
	Screens     []domain.Screen

	mu       sync.Mutex
	chosen   map[int]int
	finished bool
	effects  EffectHandler
	complete func(ctx context.Context) error
}

func newPlayback(m domain.Milestone, effects EffectHandler, complete func(context.Context) error) *Playback {
	return &Playback{
		MilestoneID: m.ID,
		Screens:     m.Screens,
		chosen:      make(map[int]int),
		effects:     effects,
		complete:    complete,
	}
}

// Choose records option on choice screen and applies that option's effect.
// Each choice screen takes exactly one answer. If the effect fails the answer
// is not recorded and the player may choose again.
func (p *Playback) Choose(ctx context.Context, screen, option int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return fmt.Errorf("%w: milestone %s already finished", domain.ErrInvalidArgument, p.MilestoneID)
	}
	if screen < 0 || screen >= len(p.Screens) {
		return fmt.Errorf("%w: screen %d out of range", domain.ErrInvalidArgument, screen)
	}
	s := p.Screens[screen]
	if !s.IsChoice() {
		return fmt.Errorf("%w: screen %d is not a choice screen", domain.ErrInvalidArgument, screen)
	}
	if option < 0 || option >= len(s.Choices) {
		return fmt.Errorf("%w: option %d out of range", domain.ErrInvalidArgument, option)
	}
	if _, done := p.chosen[screen]; done {
		return fmt.Errorf("%w: screen %d already answered", domain.ErrInvalidArgument, screen)
	}

	if eff := s.Choices[option].Effect; eff.Kind != "" && eff.Kind != domain.EffectNone {
		if err := p.effects.ApplyEffect(ctx, p.MilestoneID, eff); err != nil {
			return fmt.Errorf("apply effect: %w", err)
		}
	}
	p.chosen[screen] = option
	return nil
}

// Chosen returns the answer given on screen, if any.
func (p *Playback) Chosen(screen int) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	opt, ok := p.chosen[screen]
	return opt, ok
}

// Unanswered returns the choice screens still waiting for an answer.
func (p *Playback) Unanswered() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unansweredLocked()
}

func (p *Playback) unansweredLocked() []int {
	var out []int
	for i, s := range p.Screens {
		if _, ok := p.chosen[i]; s.IsChoice() && !ok {
			out = append(out, i)
		}
	}
	return out
}

// Finish is the continuation past the final screen. It runs the completion
// callback exactly once; later calls are no-ops. If completion cannot be
// persisted the error is returned and Finish may be called again.
func (p *Playback) Finish(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.finished {
		return nil
	}
	if open := p.unansweredLocked(); len(open) > 0 {
		return fmt.Errorf("%w: choice screen %d needs an answer", domain.ErrInvalidArgument, open[0])
	}
	if err := p.complete(ctx); err != nil {
		return err
	}
	p.finished = true
	return nil
}

// Finished reports whether the completion callback has run.
func (p *Playback) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}
