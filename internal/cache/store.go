package cache

import (
	"sync"
	"time"

	"botboard/internal/backend"
)

// Entry is the cached tuple for one conversation: its ordered message
// list, channel metadata, and the last successful fetch time.
type Entry struct {
	Messages  []backend.Message
	Meta      backend.ConversationMeta
	FetchedAt time.Time
}

// Store is the in-memory conversation cache. It survives the chat view
// being torn down and recreated; it is reset only when the whole console
// restarts. There is no eviction: unbounded growth is traded for instant
// repaint when switching back to a previously viewed conversation.
//
// The store is an owned instance injected at composition time, never a
// package-level global. Views read snapshots; all writes go through the
// Reconciler.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore creates an empty cache store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Get returns a snapshot of the entry for a conversation. The returned
// message slice is a copy; mutating it does not affect the cache.
func (s *Store) Get(conversationID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[conversationID]
	if !ok {
		return Entry{}, false
	}
	msgs := make([]backend.Message, len(e.Messages))
	copy(msgs, e.Messages)
	e.Messages = msgs
	return e, true
}

// Has reports whether a conversation has a cache entry.
func (s *Store) Has(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[conversationID]
	return ok
}

// Put replaces the entry for a conversation. The entry's message slice is
// copied on the way in so the caller cannot alias cache state.
func (s *Store) Put(conversationID string, e Entry) {
	msgs := make([]backend.Message, len(e.Messages))
	copy(msgs, e.Messages)
	e.Messages = msgs

	s.mu.Lock()
	s.entries[conversationID] = e
	s.mu.Unlock()
}

// Len returns the number of cached conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
