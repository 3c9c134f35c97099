package preload

import (
	"context"
	"sync"

	"botboard/internal/backend"
	"botboard/internal/cache"
	"botboard/internal/sched"

	"go.uber.org/zap"
)

// Warmer opportunistically fills the cache for the top conversations of a
// freshly fetched list, so switching into them paints instantly. It never
// becomes the active conversation and never touches scroll or sync state;
// failures are ignored beyond a debug log.
type Warmer struct {
	fetch  sched.MessageFetcher
	store  *cache.Store
	rec    *cache.Reconciler
	logger *zap.Logger

	topN   int
	window int

	mu      sync.Mutex
	running bool
}

// NewWarmer creates a warmer fetching through the given backend surface.
func NewWarmer(fetch sched.MessageFetcher, store *cache.Store, rec *cache.Reconciler, logger *zap.Logger, topN, window int) *Warmer {
	return &Warmer{
		fetch:  fetch,
		store:  store,
		rec:    rec,
		logger: logger,
		topN:   topN,
		window: window,
	}
}

// Warm fetches the top-N conversations of the list into the cache. The
// list is already ordered most-recent-activity-first, so list order is the
// ranking. Conversations already cached are skipped. Only one warming pass
// runs at a time; overlapping calls return immediately.
func (w *Warmer) Warm(ctx context.Context, conversations []backend.Conversation) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	n := w.topN
	if n > len(conversations) {
		n = len(conversations)
	}
	for _, conv := range conversations[:n] {
		if ctx.Err() != nil {
			return
		}
		if w.store.Has(conv.ID) {
			continue
		}
		window, err := w.fetch.GetMessages(ctx, conv.ID, w.window)
		if err != nil {
			w.logger.Debug("cache warm fetch failed",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
			continue
		}
		w.rec.Apply(conv.ID, window.Items, window.Meta)
	}
}
