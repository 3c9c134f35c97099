package cache

import (
	"sort"
	"sync"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"

	"go.uber.org/zap"
)

// optimisticMatchWindowMs bounds how far apart in time an optimistic entry
// and its server-confirmed copy may be and still be considered the same
// message. No shared identifier exists at send time, so matching is a
// heuristic over direction, text and timestamp.
const optimisticMatchWindowMs = 30_000

// Reconciler merges freshly fetched message batches into the cache store.
// It is the only writer of cache entries; views and controllers never
// splice a cached message list directly.
//
// Each conversation's get-merge-put cycle runs under a per-key mutex. The
// scheduler, warmer and outbox write concurrently, and an unserialized
// cycle lets one writer put a snapshot computed before the other's,
// shrinking the list or dropping an optimistic entry.
type Reconciler struct {
	store  *Store
	bus    *bus.Bus
	logger *zap.Logger

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// NewReconciler creates a reconciler writing into the given store.
func NewReconciler(store *Store, b *bus.Bus, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		bus:    b,
		logger: logger,
		keys:   make(map[string]*sync.Mutex),
	}
}

// lockKey returns the mutex serializing write cycles for one conversation.
func (r *Reconciler) lockKey(conversationID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.keys[conversationID]
	if !ok {
		m = &sync.Mutex{}
		r.keys[conversationID] = m
	}
	return m
}

// Result describes the outcome of applying one batch.
type Result struct {
	Applied      bool
	PrevCount    int
	NewCount     int
	NewestFromMe bool
}

// Apply reconciles a server-ordered batch into the conversation's cache
// entry. The deduplicated batch fully replaces the stored list, except:
//
//   - a batch that would shrink the cached server-confirmed list is
//     discarded as a backend anomaly, leaving the entry untouched;
//   - delivery statuses never move backward across polls;
//   - optimistic entries that no server message matches are carried
//     forward rather than silently dropped.
//
// Applying the same batch twice yields the same final list as applying it
// once.
func (r *Reconciler) Apply(conversationID string, batch []backend.Message, meta backend.ConversationMeta) Result {
	k := r.lockKey(conversationID)
	k.Lock()
	defer k.Unlock()

	existing, _ := r.store.Get(conversationID)
	prev := existing.Messages

	merged := dedupe(batch)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	confirmed := 0
	for _, m := range prev {
		if !m.Pending {
			confirmed++
		}
	}
	if len(merged) < confirmed {
		r.logger.Warn("backend returned fewer messages than cached, ignoring batch",
			zap.String("conversation_id", conversationID),
			zap.Int("cached", confirmed),
			zap.Int("returned", len(merged)))
		return Result{Applied: false, PrevCount: len(prev), NewCount: len(prev)}
	}

	// Statuses are monotonic: keep the more advanced of cached vs fetched.
	prevByID := make(map[string]backend.Message, len(prev))
	for _, m := range prev {
		if !m.Pending {
			prevByID[m.ID] = m
		}
	}
	for i := range merged {
		if old, ok := prevByID[merged[i].ID]; ok {
			merged[i].Status = backend.MergeStatus(old.Status, merged[i].Status)
		}
	}

	// Carry forward optimistic entries the server has not confirmed yet.
	for _, p := range prev {
		if !p.Pending {
			continue
		}
		if matchesServerCopy(merged, p) {
			continue
		}
		merged = insertByTimestamp(merged, p)
	}

	// A backfill can grow the list while the newest message stays the
	// same; only a genuinely new tail counts as an outbound append.
	newestFromMe := false
	if len(merged) > len(prev) && len(merged) > 0 {
		newest := merged[len(merged)-1]
		if len(prev) == 0 || prev[len(prev)-1].ID != newest.ID {
			newestFromMe = newest.FromMe
		}
	}

	r.store.Put(conversationID, Entry{
		Messages:  merged,
		Meta:      meta,
		FetchedAt: time.Now(),
	})
	r.publishUpdate(conversationID, len(prev), len(merged), newestFromMe)

	return Result{
		Applied:      true,
		PrevCount:    len(prev),
		NewCount:     len(merged),
		NewestFromMe: newestFromMe,
	}
}

// AppendLocal inserts an optimistic, locally constructed message into the
// conversation's cache entry ahead of server confirmation.
func (r *Reconciler) AppendLocal(conversationID string, msg backend.Message) {
	k := r.lockKey(conversationID)
	k.Lock()
	defer k.Unlock()

	msg.Pending = true
	existing, _ := r.store.Get(conversationID)
	msgs := insertByTimestamp(existing.Messages, msg)

	r.store.Put(conversationID, Entry{
		Messages:  msgs,
		Meta:      existing.Meta,
		FetchedAt: existing.FetchedAt,
	})
	r.publishUpdate(conversationID, len(existing.Messages), len(msgs), true)
}

// SetLocalStatus updates the delivery status of an optimistic entry, e.g.
// pending -> sent after the backend accepted it, or pending -> failed.
// The entry stays pending until a reconciled fetch replaces it with the
// server copy.
func (r *Reconciler) SetLocalStatus(conversationID, messageID string, status backend.DeliveryStatus) {
	k := r.lockKey(conversationID)
	k.Lock()
	defer k.Unlock()

	existing, ok := r.store.Get(conversationID)
	if !ok {
		return
	}
	changed := false
	for i := range existing.Messages {
		if existing.Messages[i].ID == messageID && existing.Messages[i].Pending {
			existing.Messages[i].Status = status
			changed = true
		}
	}
	if !changed {
		return
	}
	r.store.Put(conversationID, existing)
	n := len(existing.Messages)
	r.publishUpdate(conversationID, n, n, false)
}

func (r *Reconciler) publishUpdate(conversationID string, prevCount, newCount int, newestFromMe bool) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(bus.Event{
		Kind:      bus.KindCacheUpdated,
		Timestamp: time.Now(),
		Payload: bus.CacheUpdate{
			ConversationID: conversationID,
			PrevCount:      prevCount,
			NewCount:       newCount,
			NewestFromMe:   newestFromMe,
		},
	})
}

// dedupe removes duplicate identifiers from a server-ordered batch. The
// first occurrence keeps its position; when two entries share an
// identifier the later one in server order wins.
func dedupe(batch []backend.Message) []backend.Message {
	out := make([]backend.Message, 0, len(batch))
	index := make(map[string]int, len(batch))
	for _, m := range batch {
		if i, seen := index[m.ID]; seen {
			out[i] = m
			continue
		}
		index[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}

// matchesServerCopy reports whether an optimistic entry has a confirmed
// counterpart in the merged list: same outbound direction, same text,
// timestamps within the match window.
func matchesServerCopy(merged []backend.Message, pending backend.Message) bool {
	for _, m := range merged {
		if m.Pending || !m.FromMe {
			continue
		}
		if m.Content.Text != pending.Content.Text {
			continue
		}
		delta := m.Timestamp - pending.Timestamp
		if delta < 0 {
			delta = -delta
		}
		if delta <= optimisticMatchWindowMs {
			return true
		}
	}
	return false
}

// insertByTimestamp inserts a message keeping the list sorted ascending by
// timestamp. Equal timestamps keep the inserted message last. Messages
// whose identifier is already present are dropped.
func insertByTimestamp(msgs []backend.Message, m backend.Message) []backend.Message {
	for _, existing := range msgs {
		if existing.ID == m.ID {
			return msgs
		}
	}
	out := append(msgs, m)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
