package preload

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"botboard/internal/backend"
	"botboard/internal/bus"
	"botboard/internal/cache"

	"go.uber.org/zap"
)

type fakeMessages struct {
	mu      sync.Mutex
	fetched []string
	failFor map[string]bool
}

func (f *fakeMessages) GetMessages(_ context.Context, conversationID string, _ int) (*backend.MessageWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, conversationID)
	if f.failFor[conversationID] {
		return nil, fmt.Errorf("unavailable")
	}
	return &backend.MessageWindow{
		Items: []backend.Message{{ID: "m1", ConversationID: conversationID, Timestamp: 100}},
	}, nil
}

func list(n int) []backend.Conversation {
	var out []backend.Conversation
	for i := 1; i <= n; i++ {
		out = append(out, backend.Conversation{ID: fmt.Sprintf("c%d", i)})
	}
	return out
}

func newTestWarmer(f *fakeMessages, topN int) (*Warmer, *cache.Store) {
	store := cache.NewStore()
	rec := cache.NewReconciler(store, bus.New(), zap.NewNop())
	return NewWarmer(f, store, rec, zap.NewNop(), topN, 100), store
}

func TestWarmTopN(t *testing.T) {
	f := &fakeMessages{}
	w, store := newTestWarmer(f, 5)

	w.Warm(context.Background(), list(12))

	if len(f.fetched) != 5 {
		t.Fatalf("fetched %d conversations, want 5", len(f.fetched))
	}
	for i := 1; i <= 5; i++ {
		if !store.Has(fmt.Sprintf("c%d", i)) {
			t.Errorf("c%d not cached", i)
		}
	}
	if store.Has("c6") {
		t.Error("c6 cached beyond top-N")
	}
}

func TestWarmSkipsCached(t *testing.T) {
	f := &fakeMessages{}
	w, store := newTestWarmer(f, 3)
	store.Put("c2", cache.Entry{Messages: []backend.Message{{ID: "old"}}})

	w.Warm(context.Background(), list(3))

	for _, id := range f.fetched {
		if id == "c2" {
			t.Error("warmer fetched an already-cached conversation")
		}
	}
}

func TestWarmIgnoresFailures(t *testing.T) {
	f := &fakeMessages{failFor: map[string]bool{"c1": true}}
	w, store := newTestWarmer(f, 3)

	w.Warm(context.Background(), list(3))

	if store.Has("c1") {
		t.Error("failed conversation ended up cached")
	}
	if !store.Has("c2") || !store.Has("c3") {
		t.Error("a single failure stopped the warming pass")
	}
}

func TestWarmShortList(t *testing.T) {
	f := &fakeMessages{}
	w, _ := newTestWarmer(f, 5)

	w.Warm(context.Background(), list(2))

	if len(f.fetched) != 2 {
		t.Errorf("fetched %d, want 2", len(f.fetched))
	}
}
