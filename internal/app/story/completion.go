package story

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/outpost-game/outpost/internal/domain"
)

// CompletionKey is the KV key holding player's completion set.
func CompletionKey(player string) string {
	return "story:completed:" + player
}

// CompletionSet is the durable record of the milestones one player has
// finished. It only grows. Writes are serialised so two milestones finishing
// at once cannot overwrite each other's entry.
type CompletionSet struct {
	mu   sync.Mutex
	kv   domain.KVStore
	key  string
	done map[string]bool
}

// LoadCompletionSet reads player's set from kv. A key that was never
// written is an empty set.
func LoadCompletionSet(ctx context.Context, kv domain.KVStore, player string) (*CompletionSet, error) {
	cs := &CompletionSet{
		kv:   kv,
		key:  CompletionKey(player),
		done: make(map[string]bool),
	}
	ids, err := cs.read(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		cs.done[id] = true
	}
	return cs, nil
}

func (cs *CompletionSet) read(ctx context.Context) ([]string, error) {
	raw, ok, err := cs.kv.Get(ctx, cs.key)
	if err != nil {
		return nil, domain.Storage("load completion set", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, domain.Storage("decode completion set", err)
	}
	return ids, nil
}

// Has reports whether id is completed.
func (cs *CompletionSet) Has(id string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.done[id]
}

// Add marks id completed and persists the set. The stored value is re-read
// first so entries written by another session for the same player survive.
// On a write failure the in-memory set is left unchanged.
func (cs *CompletionSet) Add(ctx context.Context, id string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	stored, err := cs.read(ctx)
	if err != nil {
		return err
	}
	merged := make(map[string]bool, len(cs.done)+len(stored)+1)
	for k := range cs.done {
		merged[k] = true
	}
	for _, k := range stored {
		merged[k] = true
	}
	merged[id] = true

	raw, err := json.Marshal(sortedKeys(merged))
	if err != nil {
		return fmt.Errorf("encode completion set: %w", err)
	}
	if err := cs.kv.Set(ctx, cs.key, string(raw)); err != nil {
		return domain.Storage("save completion set", err)
	}
	cs.done = merged
	return nil
}

// IDs returns the completed milestone ids, sorted.
func (cs *CompletionSet) IDs() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return sortedKeys(cs.done)
}

// Len returns the number of completed milestones.
func (cs *CompletionSet) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.done)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
