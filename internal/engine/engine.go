package engine

import (
	"context"
	"sync"

	"botboard/internal/backend"
	"botboard/internal/bus"
	"botboard/internal/cache"
	"botboard/internal/outbox"
	"botboard/internal/pager"
	"botboard/internal/preload"
	"botboard/internal/sched"

	"go.uber.org/zap"
)

// Engine is the console-facing facade over the sync subsystem: the cache
// store, the background scheduler, the pager, the preload warmer and the
// send journal. The TUI reads snapshots through it and subscribes to the
// bus for change notifications; it never touches cache state directly.
type Engine struct {
	client *backend.Client
	store  *cache.Store
	rec    *cache.Reconciler
	sched  *sched.Scheduler
	pager  *pager.Pager
	warmer *preload.Warmer
	sender *outbox.Sender
	bus    *bus.Bus
	logger *zap.Logger

	mu    sync.Mutex
	stats *backend.LiveStats

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the engine facade.
func New(client *backend.Client, store *cache.Store, rec *cache.Reconciler, scheduler *sched.Scheduler, pg *pager.Pager, warmer *preload.Warmer, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		client: client,
		store:  store,
		rec:    rec,
		sched:  scheduler,
		pager:  pg,
		warmer: warmer,
		sender: sender,
		bus:    b,
		logger: logger,
	}
}

// Start launches the background scheduler, the send journal drain, the
// cache-warming listener, and the initial conversation list load.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.sched.Start(e.ctx)
	e.sender.Start(e.ctx)

	// Warm the cache after every first-page list refresh, and retain the
	// latest statistics snapshot for Stats.
	ch, unsub := e.bus.Subscribe("", 8)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				switch evt.Kind {
				case bus.KindListUpdated:
					if upd, ok := evt.Payload.(bus.ListUpdate); ok && upd.Replaced {
						go e.warmer.Warm(e.ctx, e.pager.Items())
					}
				case bus.KindStatsUpdated:
					if stats, ok := evt.Payload.(*backend.LiveStats); ok {
						e.mu.Lock()
						e.stats = stats
						e.mu.Unlock()
					}
				}
			case <-e.ctx.Done():
				return
			}
		}
	}()

	go e.pager.LoadFirstPage(e.ctx, "")
}

// Stop stops all background work. In-flight fetches complete and still
// land in the cache.
func (e *Engine) Stop() {
	e.sender.Stop()
	e.sched.Stop()
	if e.cancel != nil {
		e.cancel()
	}
}

// SelectConversation makes a conversation the actively polled one: its
// unread count is cleared and the scheduler fetches it immediately.
// The caller resets its scroll state alongside.
func (e *Engine) SelectConversation(conversationID string) {
	e.pager.ClearUnread(conversationID)
	e.sched.Activate(e.ctx, conversationID)
}

// DeselectConversation drops polling interest in the active conversation.
func (e *Engine) DeselectConversation() {
	e.sched.Deactivate()
}

// SendOptimistic journals an outbound text message and inserts its
// optimistic cache entry. Returns the locally generated client id.
func (e *Engine) SendOptimistic(conversationID, text string) (string, error) {
	return e.sender.Enqueue(conversationID, text)
}

// Conversations returns a snapshot of the paginated conversation list.
func (e *Engine) Conversations() []backend.Conversation {
	return e.pager.Items()
}

// Messages returns the cached entry for a conversation, if any.
func (e *Engine) Messages(conversationID string) (cache.Entry, bool) {
	return e.store.Get(conversationID)
}

// HasMoreConversations reports whether more list pages remain.
func (e *Engine) HasMoreConversations() bool {
	return e.pager.HasMore()
}

// MaybeLoadMore requests the next list page when the rendered position is
// near the end of the list.
func (e *Engine) MaybeLoadMore(distanceFromEnd int) {
	go e.pager.MaybeLoadNext(e.ctx, distanceFromEnd)
}

// ApplyFilter reloads the list's first page with a new filter.
func (e *Engine) ApplyFilter(filter string) {
	go e.pager.LoadFirstPage(e.ctx, filter)
}

// SetModeration bans or unbans a conversation and reflects the new state
// in the list ahead of the next poll.
func (e *Engine) SetModeration(conversationID string, banned bool, reason string) error {
	ok, err := e.client.SetModeration(e.ctx, conversationID, banned, reason)
	if err != nil {
		return err
	}
	if ok {
		e.pager.SetBanned(conversationID, banned)
	}
	return nil
}

// Stats returns the latest live-statistics snapshot, or nil before the
// first successful stats poll.
func (e *Engine) Stats() *backend.LiveStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Degraded reports whether consecutive sync failures crossed the
// "could not refresh" threshold.
func (e *Engine) Degraded() bool {
	return e.sched.Degraded()
}

// Subscribe exposes the engine's event bus to the UI layer.
func (e *Engine) Subscribe(namespace string, bufSize int) (<-chan bus.Event, func()) {
	return e.bus.Subscribe(namespace, bufSize)
}
