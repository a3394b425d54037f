package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/app/story"
	"github.com/outpost-game/outpost/internal/domain"
	"github.com/outpost-game/outpost/internal/infra/sqlite"
)

// ─── Setup ──────────────────────────────────────────────────────────────────

// luckyRand always passes the success roll and picks the first catalog slot.
type luckyRand struct{}

func (luckyRand) Float64() float64 { return 0 }
func (luckyRand) Intn(int) int     { return 0 }

// emptyHanded always fails the success roll.
type emptyHanded struct{}

func (emptyHanded) Float64() float64 { return 0.999 }
func (emptyHanded) Intn(int) int     { return 0 }

type testEnv struct {
	db      *sqlite.DB
	handler http.Handler
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	return setupServerWith(t, luckyRand{})
}

// setupServerWith builds the test server around rng, registering extra
// milestones after the standard ones.
func setupServerWith(t *testing.T, rng resolver.Random, extra ...domain.Milestone) *testEnv {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, it := range []domain.Item{
		{ID: "copper-ore", Name: "Copper Ore", Category: "ore", Rarity: domain.RarityCommon},
		{ID: "lucky-charm", Name: "Lucky Charm", Category: "trinket", Rarity: domain.RarityRare},
	} {
		if err := db.UpsertItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpsertLocation(ctx, domain.Location{
		ID: "quarry", Name: "Old Quarry", RewardCategory: "ore",
		Actions: []domain.ActionKind{domain.ActionMine},
	}); err != nil {
		t.Fatal(err)
	}
	for _, a := range []*domain.Actor{
		{Wallet: "0xrich", Level: 12, Health: 80, Energy: 10, Experience: 500, LocationID: "quarry"},
		{Wallet: "0xtired", Level: 1, Health: 30, Energy: 7, LocationID: "quarry"},
	} {
		if err := db.InsertActor(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	reg := story.NewRegistry(domain.Milestone{
		ID: "first-ore", Trigger: domain.TriggerItem, Condition: domain.ItemCondition{ItemID: "copper-ore"},
		OneTime: true,
		Screens: []domain.Screen{
			{Kind: domain.ScreenNarrative, Text: "It glints."},
			{Kind: domain.ScreenChoice, Text: "Keep it?", Choices: []domain.Choice{
				{Label: "Keep", Effect: domain.Effect{Kind: domain.EffectGrant, Value: "lucky-charm"}},
				{Label: "Toss"},
			}},
		},
	}, domain.Milestone{
		ID: "intro", Trigger: domain.TriggerManual, Condition: domain.ManualCondition{}, OneTime: true,
		Screens: []domain.Screen{{Kind: domain.ScreenNarrative, Text: "Hello."}},
	})
	for _, m := range extra {
		reg.Register(m)
	}

	res := resolver.New(resolver.DefaultConfig(), db, rng)
	srv := NewServer(res, db)
	srv.SetStories(NewStorySessions(reg, db, db))
	srv.EnableMetrics()
	return &testEnv{db: db, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)

	var resp map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, resp
}

func errorKind(resp map[string]interface{}) string {
	e, _ := resp["error"].(map[string]interface{})
	k, _ := e["kind"].(string)
	return k
}

// ─── Health / Metrics ───────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := setupServer(t)
	w, resp := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || resp["status"] != "ok" {
		t.Fatalf("health = %d %v", w.Code, resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupServer(t)
	env.do(t, http.MethodPost, "/api/actions/resolve", `{"walletAddress":"0xrich"}`)

	w, _ := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "outpost_actions_resolved_total") {
		t.Error("resolve counter missing from /metrics")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setupServer(t)
	w, _ := env.do(t, http.MethodOptions, "/api/actions/resolve", "")
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}
}

// ─── Resolve ────────────────────────────────────────────────────────────────

func TestResolve_Success(t *testing.T) {
	env := setupServer(t)

	w, resp := env.do(t, http.MethodPost, "/api/actions/resolve",
		`{"walletAddress":"0xRICH","locationId":"quarry","action":"MINE"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if resp["success"] != true || resp["cost"] != float64(8) {
		t.Errorf("resp = %v", resp)
	}
	actor := resp["actor"].(map[string]interface{})
	if actor["energy"] != float64(2) {
		t.Errorf("energy = %v, want 2", actor["energy"])
	}
	found := resp["found"].(map[string]interface{})
	if found["item"].(map[string]interface{})["id"] != "copper-ore" {
		t.Errorf("found = %v", found)
	}
	if resp["message"] != "You found Copper Ore!" {
		t.Errorf("message = %v", resp["message"])
	}
	ms, _ := resp["milestones"].([]interface{})
	if len(ms) != 1 || ms[0].(map[string]interface{})["milestoneId"] != "first-ore" {
		t.Errorf("milestones = %v", resp["milestones"])
	}
}

func TestResolve_EmptyHandedStillSendsActionEvent(t *testing.T) {
	env := setupServerWith(t, emptyHanded{}, domain.Milestone{
		ID: "first-swing", Trigger: domain.TriggerAction, Condition: domain.ActionCondition{Action: domain.ActionMine},
		OneTime: true,
		Screens: []domain.Screen{{Kind: domain.ScreenNarrative, Text: "The pick bounces off."}},
	})

	w, resp := env.do(t, http.MethodPost, "/api/actions/resolve", `{"walletAddress":"0xrich","action":"mine"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if resp["found"] != nil {
		t.Fatalf("found = %v, want nothing", resp["found"])
	}
	if resp["action"] != "MINE" || resp["locationId"] != "quarry" {
		t.Errorf("action = %v at %v, want MINE at quarry", resp["action"], resp["locationId"])
	}
	ms, _ := resp["milestones"].([]interface{})
	if len(ms) != 1 || ms[0].(map[string]interface{})["milestoneId"] != "first-swing" {
		t.Errorf("milestones = %v, want only first-swing", resp["milestones"])
	}

	_, resp = env.do(t, http.MethodGet, "/api/story/0xrich/pending", "")
	pending, _ := resp["pending"].(map[string]interface{})
	if pending == nil || pending["milestoneId"] != "first-swing" {
		t.Errorf("pending = %v", resp["pending"])
	}
}

func TestStorySessions_ConcurrentFirstUseSharesOneSession(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ss := NewStorySessions(story.NewRegistry(), db, nil)

	const n = 16
	got := make([]*storySession, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := ss.session(context.Background(), "0xrich")
			if err != nil {
				t.Errorf("session() error: %v", err)
				return
			}
			got[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatalf("session %d differs from session 0", i)
		}
	}
	if ss.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ss.Len())
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"bad json", `{"walletAddress":`, http.StatusBadRequest, "InvalidArgument"},
		{"missing wallet", `{}`, http.StatusBadRequest, "InvalidArgument"},
		{"unknown action", `{"walletAddress":"0xrich","action":"DANCE"}`, http.StatusBadRequest, "InvalidArgument"},
		{"unknown wallet", `{"walletAddress":"0xghost"}`, http.StatusNotFound, "NotFound"},
		{"unknown location", `{"walletAddress":"0xrich","locationId":"atlantis"}`, http.StatusNotFound, "NotFound"},
		{"unsupported action", `{"walletAddress":"0xrich","action":"FORAGE"}`, http.StatusUnprocessableEntity, "ActionUnavailable"},
		{"too tired", `{"walletAddress":"0xtired"}`, http.StatusUnprocessableEntity, "InsufficientResource"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupServer(t)
			w, resp := env.do(t, http.MethodPost, "/api/actions/resolve", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if got := errorKind(resp); got != tt.kind {
				t.Errorf("kind = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestResolve_InsufficientCarriesNumbers(t *testing.T) {
	env := setupServer(t)
	_, resp := env.do(t, http.MethodPost, "/api/actions/resolve", `{"walletAddress":"0xtired"}`)
	e := resp["error"].(map[string]interface{})
	if e["cost"] != float64(15) || e["energy"] != float64(7) {
		t.Errorf("error body = %v", e)
	}
}

func TestResolve_StorageFailureIsGeneric(t *testing.T) {
	env := setupServer(t)
	env.db.Close()

	w, resp := env.do(t, http.MethodPost, "/api/actions/resolve", `{"walletAddress":"0xrich"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	e := resp["error"].(map[string]interface{})
	if e["kind"] != "StorageError" || e["message"] != "internal error" {
		t.Errorf("error body = %v", e)
	}
}

// ─── Actor Read Models ──────────────────────────────────────────────────────

func TestActor(t *testing.T) {
	env := setupServer(t)

	w, resp := env.do(t, http.MethodGet, "/api/actors/0xrich", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["cost"] != float64(8) || resp["successRatePercent"] == nil || resp["capacity"] == nil {
		t.Errorf("resp = %v", resp)
	}

	w, resp = env.do(t, http.MethodGet, "/api/actors/0xghost", "")
	if w.Code != http.StatusNotFound || errorKind(resp) != "NotFound" {
		t.Errorf("missing actor = %d %v", w.Code, resp)
	}
}

func TestInventoryAndTransactions(t *testing.T) {
	env := setupServer(t)
	env.do(t, http.MethodPost, "/api/actions/resolve", `{"walletAddress":"0xrich"}`)

	_, resp := env.do(t, http.MethodGet, "/api/actors/0xrich/inventory", "")
	items := resp["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["quantity"] != float64(1) {
		t.Errorf("items = %v", items)
	}

	_, resp = env.do(t, http.MethodGet, "/api/actors/0xrich/transactions?limit=10", "")
	txs := resp["transactions"].([]interface{})
	if len(txs) != 1 || txs[0].(map[string]interface{})["cost"] != float64(8) {
		t.Errorf("transactions = %v", txs)
	}

	w, _ := env.do(t, http.MethodGet, "/api/actors/0xrich/transactions?limit=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}

	_, resp = env.do(t, http.MethodGet, "/api/actors/0xtired/inventory", "")
	if items := resp["items"].([]interface{}); len(items) != 0 {
		t.Errorf("empty inventory = %v", items)
	}
}

// ─── Story ──────────────────────────────────────────────────────────────────

func TestStory_PlayThroughPendingMilestone(t *testing.T) {
	env := setupServer(t)

	_, resp := env.do(t, http.MethodGet, "/api/story/0xrich/pending", "")
	if resp["pending"] != nil {
		t.Fatalf("pending before any trigger = %v", resp["pending"])
	}

	env.do(t, http.MethodPost, "/api/actions/resolve", `{"walletAddress":"0xrich"}`)

	_, resp = env.do(t, http.MethodGet, "/api/story/0xrich/pending", "")
	pending := resp["pending"].(map[string]interface{})
	if pending["milestoneId"] != "first-ore" {
		t.Fatalf("pending = %v", pending)
	}
	if un := pending["unanswered"].([]interface{}); len(un) != 1 || un[0] != float64(1) {
		t.Errorf("unanswered = %v", un)
	}

	w, resp := env.do(t, http.MethodPost, "/api/story/0xrich/pending/finish", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("finish with open choice = %d %v", w.Code, resp)
	}

	w, _ = env.do(t, http.MethodPost, "/api/story/0xrich/pending/choose", `{"screen":1,"option":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("choose = %d %s", w.Code, w.Body.String())
	}
	w, resp = env.do(t, http.MethodPost, "/api/story/0xrich/pending/finish", "")
	if w.Code != http.StatusOK || resp["state"] != "COMPLETED" {
		t.Fatalf("finish = %d %v", w.Code, resp)
	}

	// The GRANT_ITEM effect landed in the inventory.
	_, resp = env.do(t, http.MethodGet, "/api/actors/0xrich/inventory", "")
	if items := resp["items"].([]interface{}); len(items) != 2 {
		t.Errorf("inventory after grant = %v", items)
	}

	w, _ = env.do(t, http.MethodPost, "/api/story/0xrich/pending/finish", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("finish with empty queue = %d", w.Code)
	}

	_, resp = env.do(t, http.MethodGet, "/api/story/0xrich/milestones", "")
	completed := resp["completed"].([]interface{})
	if len(completed) != 1 || completed[0] != "first-ore" {
		t.Errorf("completed = %v", completed)
	}
}

func TestStory_Trigger(t *testing.T) {
	env := setupServer(t)

	_, resp := env.do(t, http.MethodPost, "/api/story/0xrich/trigger", `{"milestoneId":"intro"}`)
	results := resp["results"].([]interface{})
	if r := results[0].(map[string]interface{}); r["fired"] != true || r["reason"] != "FIRED" {
		t.Errorf("first trigger = %v", r)
	}

	_, resp = env.do(t, http.MethodPost, "/api/story/0xrich/trigger", `{"milestoneId":"intro"}`)
	if r := resp["results"].([]interface{})[0].(map[string]interface{}); r["reason"] != "IN_PROGRESS" {
		t.Errorf("second trigger = %v", r)
	}

	_, resp = env.do(t, http.MethodPost, "/api/story/0xrich/trigger", `{"milestoneId":"nope"}`)
	if r := resp["results"].([]interface{})[0].(map[string]interface{}); r["reason"] != "UNKNOWN_MILESTONE" {
		t.Errorf("unknown = %v", r)
	}

	_, resp = env.do(t, http.MethodPost, "/api/story/0xrich/trigger", `{"context":{"kind":"item","itemId":"flint"}}`)
	if r := resp["results"].([]interface{})[0].(map[string]interface{}); r["reason"] != "CONDITION_UNMET" {
		t.Errorf("event = %v", r)
	}

	w, resp := env.do(t, http.MethodPost, "/api/story/0xrich/trigger", `{"context":{"kind":"SNEEZE"}}`)
	if w.Code != http.StatusBadRequest || errorKind(resp) != "InvalidArgument" {
		t.Errorf("bad kind = %d %v", w.Code, resp)
	}

	w, _ = env.do(t, http.MethodPost, "/api/story/0xrich/trigger", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty trigger = %d", w.Code)
	}
}
