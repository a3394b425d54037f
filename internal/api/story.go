package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/app/story"
	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/observability"
)

// ─── Story Sessions ─────────────────────────────────────────────────────────
//
// POST /api/story/{wallet}/trigger          — check one milestone or send an event
// GET  /api/story/{wallet}/pending          — the playback waiting for the player
// POST /api/story/{wallet}/pending/choose   — answer a choice screen
// POST /api/story/{wallet}/pending/finish   — continue past the last screen
// GET  /api/story/{wallet}/milestones       — every milestone with its state

// ItemGranter applies GRANT_ITEM effects.
type ItemGranter interface {
	GrantItem(ctx context.Context, wallet, itemID string, qty int) (*domain.InventoryLine, error)
}

// StorySessions holds one story.Engine per wallet, created on first use.
// Fired milestones queue up server-side until the client plays them.
type StorySessions struct {
	mu       sync.Mutex
	registry *story.Registry
	kv       domain.KVStore
	granter  ItemGranter // nil ignores GRANT_ITEM
	sessions map[string]*storySession
	log      *slog.Logger
}

type storySession struct {
	engine  *story.Engine
	pending *pendingQueue
}

// NewStorySessions creates the session table.
func NewStorySessions(reg *story.Registry, kv domain.KVStore, granter ItemGranter) *StorySessions {
	return &StorySessions{
		registry: reg,
		kv:       kv,
		granter:  granter,
		sessions: make(map[string]*storySession),
		log:      observability.Component("story"),
	}
}

// Len returns the number of live sessions.
func (ss *StorySessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}

// session returns wallet's session, loading its completion set on first use.
// The load runs outside the table lock; when two requests race, the first
// stored session wins and the other load is discarded.
func (ss *StorySessions) session(ctx context.Context, wallet string) (*storySession, error) {
	ss.mu.Lock()
	s, ok := ss.sessions[wallet]
	ss.mu.Unlock()
	if ok {
		return s, nil
	}

	cs, err := story.LoadCompletionSet(ctx, ss.kv, wallet)
	if err != nil {
		return nil, err
	}
	q := &pendingQueue{}
	fresh := &storySession{
		engine:  story.NewEngine(ss.registry, cs, q, ss.effectsFor(wallet)),
		pending: q,
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if s, ok := ss.sessions[wallet]; ok {
		return s, nil
	}
	ss.sessions[wallet] = fresh
	return fresh, nil
}

// FlagKey is the KV key a SET_FLAG effect writes.
func FlagKey(wallet, flag string) string {
	return "story:flag:" + wallet + ":" + flag
}

func (ss *StorySessions) effectsFor(wallet string) story.EffectHandler {
	return story.EffectFunc(func(ctx context.Context, milestoneID string, e domain.Effect) error {
		switch e.Kind {
		case domain.EffectSetFlag:
			return ss.kv.Set(ctx, FlagKey(wallet, e.Key), e.Value)
		case domain.EffectGrant:
			if ss.granter == nil {
				ss.log.Warn("item grant ignored", "wallet", wallet, "milestone", milestoneID, "item", e.Value)
				return nil
			}
			_, err := ss.granter.GrantItem(ctx, wallet, e.Value, 1)
			return err
		default:
			return nil
		}
	})
}

// ActionResolved feeds a resolved action into the wallet's session: an ITEM
// event when something was found, then an ACTION event. Only fired results
// are returned. Story failures never fail the action that already committed.
func (ss *StorySessions) ActionResolved(ctx context.Context, res *resolver.ActionResult) []story.TriggerResult {
	s, err := ss.session(ctx, res.Actor.Wallet)
	if err != nil {
		ss.log.Error("story session unavailable", "wallet", res.Actor.Wallet, "error", err)
		return nil
	}

	base := story.TriggerContext{
		Level:      res.Actor.Level,
		LocationID: res.LocationID,
		Action:     res.Action,
	}
	kinds := []domain.TriggerKind{domain.TriggerAction}
	if res.Found != nil {
		base.ItemID = res.Found.Item.ID
		kinds = []domain.TriggerKind{domain.TriggerItem, domain.TriggerAction}
	}

	var fired []story.TriggerResult
	for _, kind := range kinds {
		tc := base
		tc.Kind = kind
		for _, r := range s.engine.OnEvent(ctx, tc) {
			if r.Fired {
				fired = append(fired, r)
			}
		}
	}
	return fired
}

// pendingQueue is the server-side presenter: fired playbacks wait here in
// firing order until the client finishes them.
type pendingQueue struct {
	mu    sync.Mutex
	items []*story.Playback
}

func (q *pendingQueue) Present(p *story.Playback) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
}

// head returns the first unfinished playback, dropping finished ones.
func (q *pendingQueue) head() *story.Playback {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 && q.items[0].Finished() {
		q.items = q.items[1:]
	}
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, p := range q.items {
		if !p.Finished() {
			n++
		}
	}
	return n
}

// ─── Handlers ───────────────────────────────────────────────────────────────

type triggerRequest struct {
	MilestoneID string               `json:"milestoneId,omitempty"`
	Context     story.TriggerContext `json:"context"`
}

type pendingView struct {
	MilestoneID string          `json:"milestoneId"`
	Screens     []domain.Screen `json:"screens"`
	Unanswered  []int           `json:"unanswered"`
	Queued      int             `json:"queued"`
}

func viewOf(p *story.Playback, queued int) *pendingView {
	un := p.Unanswered()
	if un == nil {
		un = []int{}
	}
	return &pendingView{
		MilestoneID: p.MilestoneID,
		Screens:     p.Screens,
		Unanswered:  un,
		Queued:      queued,
	}
}

func (s *Server) storySession(w http.ResponseWriter, r *http.Request) (*storySession, bool) {
	wallet, ok := walletParam(w, r)
	if !ok {
		return nil, false
	}
	sess, err := s.stories.session(r.Context(), wallet)
	if err != nil {
		s.writeDomainError(w, r, err)
		return nil, false
	}
	return sess, true
}

// handleStoryTrigger checks one milestone by id, or runs an event through
// every milestone of its kind.
// POST /api/story/{wallet}/trigger
func (s *Server) handleStoryTrigger(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.storySession(w, r)
	if !ok {
		return
	}
	var req triggerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var results []story.TriggerResult
	switch {
	case req.MilestoneID != "":
		results = []story.TriggerResult{sess.engine.CheckAndTrigger(r.Context(), req.MilestoneID, req.Context)}
	case req.Context.Kind != "":
		kind, err := domain.ParseTriggerKind(string(req.Context.Kind))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		req.Context.Kind = kind
		results = sess.engine.OnEvent(r.Context(), req.Context)
	default:
		writeError(w, http.StatusBadRequest, domain.KindInvalidArgument, "milestoneId or context.kind is required")
		return
	}
	if results == nil {
		results = []story.TriggerResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"pending": sess.pending.len(),
	})
}

// handleStoryPending returns the playback at the head of the queue, or null.
// GET /api/story/{wallet}/pending
func (s *Server) handleStoryPending(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.storySession(w, r)
	if !ok {
		return
	}
	var view *pendingView
	if p := sess.pending.head(); p != nil {
		view = viewOf(p, sess.pending.len())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": view})
}

type chooseRequest struct {
	Screen int `json:"screen"`
	Option int `json:"option"`
}

// handleStoryChoose answers a choice screen of the head playback.
// POST /api/story/{wallet}/pending/choose
func (s *Server) handleStoryChoose(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.storySession(w, r)
	if !ok {
		return
	}
	var req chooseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := sess.pending.head()
	if p == nil {
		writeError(w, http.StatusNotFound, domain.KindNotFound, "no pending milestone")
		return
	}
	if err := p.Choose(r.Context(), req.Screen, req.Option); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pending": viewOf(p, sess.pending.len())})
}

// handleStoryFinish completes the head playback.
// POST /api/story/{wallet}/pending/finish
func (s *Server) handleStoryFinish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.storySession(w, r)
	if !ok {
		return
	}
	p := sess.pending.head()
	if p == nil {
		writeError(w, http.StatusNotFound, domain.KindNotFound, "no pending milestone")
		return
	}
	if err := p.Finish(r.Context()); err != nil {
		s.writeDomainError(w, r, fmt.Errorf("finish %s: %w", p.MilestoneID, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"milestoneId": p.MilestoneID,
		"state":       sess.engine.State(p.MilestoneID),
		"pending":     sess.pending.len(),
	})
}

// handleStoryMilestones lists every milestone with this player's state.
// GET /api/story/{wallet}/milestones
func (s *Server) handleStoryMilestones(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.storySession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"milestones": sess.engine.Overview(),
		"completed":  sess.engine.Completed(),
	})
}
