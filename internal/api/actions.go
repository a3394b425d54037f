package api

import (
	"net/http"
	"strconv"

	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/app/stats"
	"github.com/outpost-game/outpost/internal/app/story"
	"github.com/outpost-game/outpost/internal/domain"
)

// ─── Action API ─────────────────────────────────────────────────────────────
//
// POST /api/actions/resolve                 — run one gathering action
// GET  /api/actors/{wallet}                 — actor snapshot + derived stats
// GET  /api/actors/{wallet}/inventory       — inventory lines
// GET  /api/actors/{wallet}/transactions    — audit log, newest first

// resolveResponse is an ActionResult plus any milestones it fired.
type resolveResponse struct {
	*resolver.ActionResult
	Milestones []story.TriggerResult `json:"milestones,omitempty"`
}

// handleResolve runs one action.
// POST /api/actions/resolve
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolver.ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.resolver.Resolve(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := resolveResponse{ActionResult: res}
	if s.stories != nil {
		resp.Milestones = s.stories.ActionResolved(r.Context(), res)
	}
	writeJSON(w, http.StatusOK, resp)
}

// actorView is an actor with its derived figures.
type actorView struct {
	Actor domain.Actor `json:"actor"`
	stats.Snapshot
}

// handleActor returns the actor snapshot.
// GET /api/actors/{wallet}
func (s *Server) handleActor(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.loadActor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, actorView{
		Actor:    *actor,
		Snapshot: stats.Derive(s.resolver.Config().Stats, *actor),
	})
}

// handleInventory lists the actor's inventory.
// GET /api/actors/{wallet}/inventory
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.loadActor(w, r)
	if !ok {
		return
	}
	lines, err := s.store.Inventory(r.Context(), actor.ID)
	if err != nil {
		s.writeDomainError(w, r, domain.Storage("inventory", err))
		return
	}
	if lines == nil {
		lines = []domain.InventoryLine{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actorId": actor.ID,
		"items":   lines,
	})
}

// handleTransactions lists recent audit records.
// GET /api/actors/{wallet}/transactions?limit=N
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.loadActor(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, domain.KindInvalidArgument, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	recs, err := s.store.Transactions(r.Context(), actor.ID, limit)
	if err != nil {
		s.writeDomainError(w, r, domain.Storage("transactions", err))
		return
	}
	if recs == nil {
		recs = []domain.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actorId":      actor.ID,
		"transactions": recs,
	})
}

func (s *Server) loadActor(w http.ResponseWriter, r *http.Request) (*domain.Actor, bool) {
	wallet, ok := walletParam(w, r)
	if !ok {
		return nil, false
	}
	actor, err := s.store.ActorByWallet(r.Context(), wallet)
	if err != nil {
		s.writeDomainError(w, r, domain.Storage("load actor", err))
		return nil, false
	}
	return actor, true
}
