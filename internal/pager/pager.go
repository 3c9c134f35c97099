package pager

import (
	"context"
	"sync"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"

	"go.uber.org/zap"
)

// ListFetcher supplies pages of the conversation list.
type ListFetcher interface {
	ListConversations(ctx context.Context, filter string, pageSize, offset int) (*backend.ConversationPage, error)
}

// Pager manages offset-based paging of the conversation list. First-page
// reloads (poll-driven) and next-page appends (scroll-driven) can overlap
// while the underlying list is being added to, so identifiers already seen
// are suppressed when appending.
type Pager struct {
	fetch  ListFetcher
	bus    *bus.Bus
	logger *zap.Logger

	pageSize  int
	proximity int

	mu       sync.Mutex
	filter   string
	items    []backend.Conversation
	seen     map[string]struct{}
	offset   int
	total    int
	hasMore  bool
	inFlight bool
	// queuedFilter holds a first-page request that arrived while a load
	// was in flight. An operator's filter change must not be dropped just
	// because it raced a background reload.
	queuedFilter *string
}

// New creates a pager over the given fetcher. proximity is the distance
// from the end of the rendered list, in rows, at which the next page is
// requested.
func New(fetch ListFetcher, b *bus.Bus, logger *zap.Logger, pageSize, proximity int) *Pager {
	return &Pager{
		fetch:     fetch,
		bus:       b,
		logger:    logger,
		pageSize:  pageSize,
		proximity: proximity,
		seen:      make(map[string]struct{}),
	}
}

// LoadFirstPage replaces the list with the first page for the given
// filter, resetting offset, exhaustion state and the seen-identifier set.
// Errors are absorbed and logged; the previous list stays visible.
func (p *Pager) LoadFirstPage(ctx context.Context, filter string) {
	p.mu.Lock()
	if p.inFlight {
		f := filter
		p.queuedFilter = &f
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.filter = filter
	p.mu.Unlock()

	page, err := p.fetch.ListConversations(ctx, filter, p.pageSize, 0)

	p.mu.Lock()
	p.inFlight = false
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("conversation list refresh failed", zap.Error(err))
		p.runQueued(ctx)
		return
	}

	p.items = p.items[:0]
	p.seen = make(map[string]struct{}, len(page.Items))
	for _, c := range page.Items {
		if _, dup := p.seen[c.ID]; dup {
			continue
		}
		p.seen[c.ID] = struct{}{}
		p.items = append(p.items, c)
	}
	p.offset = len(page.Items)
	p.total = page.Total
	p.hasMore = p.computeHasMore(len(page.Items))
	count, hasMore := len(p.items), p.hasMore
	p.mu.Unlock()

	p.publish(count, hasMore, true)
	p.runQueued(ctx)
}

// LoadNextPage appends the next page to the list. It is a no-op while a
// load is in flight or when the list is exhausted.
func (p *Pager) LoadNextPage(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight || !p.hasMore {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	filter, offset := p.filter, p.offset
	p.mu.Unlock()

	page, err := p.fetch.ListConversations(ctx, filter, p.pageSize, offset)

	p.mu.Lock()
	p.inFlight = false
	if err != nil {
		p.mu.Unlock()
		p.logger.Warn("conversation list page load failed", zap.Error(err), zap.Int("offset", offset))
		p.runQueued(ctx)
		return
	}

	for _, c := range page.Items {
		if _, dup := p.seen[c.ID]; dup {
			continue
		}
		p.seen[c.ID] = struct{}{}
		p.items = append(p.items, c)
	}
	p.offset += len(page.Items)
	if page.Total > 0 {
		p.total = page.Total
	}
	p.hasMore = p.computeHasMore(len(page.Items))
	count, hasMore := len(p.items), p.hasMore
	p.mu.Unlock()

	p.publish(count, hasMore, false)
	p.runQueued(ctx)
}

// runQueued re-runs a first-page request that was deferred behind an
// in-flight load. Called only after the caller released the in-flight
// flag.
func (p *Pager) runQueued(ctx context.Context) {
	p.mu.Lock()
	next := p.queuedFilter
	p.queuedFilter = nil
	p.mu.Unlock()
	if next != nil {
		p.LoadFirstPage(ctx, *next)
	}
}

// MaybeLoadNext requests the next page when the rendered list position is
// within the trigger proximity of its end.
func (p *Pager) MaybeLoadNext(ctx context.Context, distanceFromEnd int) {
	if distanceFromEnd > p.proximity {
		return
	}
	p.LoadNextPage(ctx)
}

// Reload re-runs the first page with the current filter. Used by the
// background list poll. Unlike an operator-driven first-page request, a
// reload that races an in-flight load is simply skipped; the next poll
// tick repeats it and it must not clobber a queued filter change.
func (p *Pager) Reload(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	filter := p.filter
	p.mu.Unlock()
	p.LoadFirstPage(ctx, filter)
}

// Items returns a snapshot of the merged list.
func (p *Pager) Items() []backend.Conversation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]backend.Conversation, len(p.items))
	copy(out, p.items)
	return out
}

// HasMore reports whether more pages remain.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// ClearUnread zeroes the unread count of one conversation, the single
// partial mutation the list allows. Applied when the operator opens it.
func (p *Pager) ClearUnread(conversationID string) {
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].ID == conversationID {
			p.items[i].UnreadCount = 0
		}
	}
	count, hasMore := len(p.items), p.hasMore
	p.mu.Unlock()
	p.publish(count, hasMore, false)
}

// SetBanned flips the ban marker of one conversation ahead of the next
// list poll confirming it.
func (p *Pager) SetBanned(conversationID string, banned bool) {
	p.mu.Lock()
	for i := range p.items {
		if p.items[i].ID == conversationID {
			p.items[i].Banned = banned
		}
	}
	count, hasMore := len(p.items), p.hasMore
	p.mu.Unlock()
	p.publish(count, hasMore, false)
}

// computeHasMore expects p.mu held. lastPageLen is the raw item count of
// the page just fetched, before duplicate suppression.
func (p *Pager) computeHasMore(lastPageLen int) bool {
	if p.total > 0 {
		return p.offset < p.total
	}
	return lastPageLen == p.pageSize
}

func (p *Pager) publish(count int, hasMore, replaced bool) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(bus.Event{
		Kind:      bus.KindListUpdated,
		Timestamp: time.Now(),
		Payload: bus.ListUpdate{
			Count:    count,
			HasMore:  hasMore,
			Replaced: replaced,
		},
	})
}
