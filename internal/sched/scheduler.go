package sched

import (
	"context"
	"sync"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"
	"botboard/internal/cache"

	"go.uber.org/zap"
)

// MessageFetcher is the backend surface the scheduler polls for messages.
type MessageFetcher interface {
	GetMessages(ctx context.Context, conversationID string, windowSize int) (*backend.MessageWindow, error)
}

// StatsFetcher supplies the aggregate live-statistics snapshot.
type StatsFetcher interface {
	LiveStats(ctx context.Context) (*backend.LiveStats, error)
}

// ListRefresher re-runs the conversation list's first page. Implemented by
// the pager, which coalesces overlapping refreshes itself.
type ListRefresher interface {
	Reload(ctx context.Context)
}

// phase is the fetch state of one tracked key.
type phase int

const (
	phaseIdle phase = iota
	phaseFetching
	phaseApplying
)

// keyState tracks one conversation's fetch machine. The explicit in-flight
// flag enforces at most one concurrent fetch per key; the sequence numbers
// let a slow fetch be discarded instead of overwriting a newer one.
type keyState struct {
	phase       phase
	inFlight    bool
	nextSeq     uint64
	lastApplied uint64
	failures    int
}

// Scheduler drives periodic re-fetch of the active conversation, the
// conversation list and live statistics on independent fixed-interval
// timers, independent of any user-visible loading state.
type Scheduler struct {
	fetch  MessageFetcher
	stats  StatsFetcher
	list   ListRefresher
	rec    *cache.Reconciler
	bus    *bus.Bus
	logger *zap.Logger

	window        int
	convInterval  time.Duration
	listInterval  time.Duration
	statsInterval time.Duration
	degradedAfter int

	mu            sync.Mutex
	keys          map[string]*keyState
	active        string
	degraded      bool
	statsInFlight bool
	cancel        context.CancelFunc
}

// Options configures a scheduler.
type Options struct {
	Window        int
	ConvInterval  time.Duration
	ListInterval  time.Duration
	StatsInterval time.Duration
	// DegradedAfter is how many consecutive failed polls of the active
	// conversation flip the console into "could not refresh" state.
	DegradedAfter int
}

// New creates a scheduler. Stats and list pollers are optional; a nil
// fetcher disables that timer.
func New(fetch MessageFetcher, stats StatsFetcher, list ListRefresher, rec *cache.Reconciler, b *bus.Bus, logger *zap.Logger, opts Options) *Scheduler {
	if opts.DegradedAfter <= 0 {
		opts.DegradedAfter = 3
	}
	return &Scheduler{
		fetch:         fetch,
		stats:         stats,
		list:          list,
		rec:           rec,
		bus:           b,
		logger:        logger,
		window:        opts.Window,
		convInterval:  opts.ConvInterval,
		listInterval:  opts.ListInterval,
		statsInterval: opts.StatsInterval,
		degradedAfter: opts.DegradedAfter,
		keys:          make(map[string]*keyState),
	}
}

// Start launches the timer loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	convTicker := time.NewTicker(s.convInterval)
	listTicker := time.NewTicker(s.listInterval)
	statsTicker := time.NewTicker(s.statsInterval)

	go func() {
		defer convTicker.Stop()
		defer listTicker.Stop()
		defer statsTicker.Stop()
		for {
			select {
			case <-convTicker.C:
				s.mu.Lock()
				active := s.active
				s.mu.Unlock()
				if active != "" {
					go s.FetchConversation(ctx, active)
				}
			case <-listTicker.C:
				if s.list != nil {
					go s.list.Reload(ctx)
				}
			case <-statsTicker.C:
				if s.stats != nil {
					go s.fetchStats(ctx)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the timer loop. In-flight fetches complete and still land in
// the cache.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Activate makes a conversation the polled one and triggers an immediate
// fetch regardless of cache freshness. Interest in the previously active
// conversation is dropped: its in-flight result still lands in the cache,
// but no timer re-arms for it.
func (s *Scheduler) Activate(ctx context.Context, conversationID string) {
	s.mu.Lock()
	s.active = conversationID
	s.mu.Unlock()
	go s.FetchConversation(ctx, conversationID)
}

// Deactivate clears the active conversation.
func (s *Scheduler) Deactivate() {
	s.mu.Lock()
	s.active = ""
	s.mu.Unlock()
}

// Nudge forces an out-of-band fetch for a conversation, coalesced with any
// fetch already in flight. The outbox uses it to reconcile optimistic
// sends promptly.
func (s *Scheduler) Nudge(ctx context.Context, conversationID string) {
	go s.FetchConversation(ctx, conversationID)
}

// FetchConversation performs one fetch-and-apply cycle for a conversation.
// A no-op when a fetch for the same key is already in flight.
func (s *Scheduler) FetchConversation(ctx context.Context, conversationID string) {
	seq, ok := s.beginFetch(conversationID)
	if !ok {
		return
	}
	window, err := s.fetch.GetMessages(ctx, conversationID, s.window)
	s.finishFetch(conversationID, seq, window, err)
}

// beginFetch transitions a key to Fetching and allocates its sequence
// number. Returns ok=false when a fetch is already in flight for the key.
func (s *Scheduler) beginFetch(conversationID string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ks := s.key(conversationID)
	if ks.inFlight {
		return 0, false
	}
	ks.inFlight = true
	ks.phase = phaseFetching
	ks.nextSeq++
	return ks.nextSeq, true
}

// finishFetch resolves one fetch cycle: discard stale results, absorb
// errors, or apply the batch through the reconciler.
func (s *Scheduler) finishFetch(conversationID string, seq uint64, window *backend.MessageWindow, err error) {
	s.mu.Lock()
	ks := s.key(conversationID)
	ks.inFlight = false

	if err != nil {
		ks.phase = phaseIdle
		ks.failures++
		degradedNow := conversationID == s.active && ks.failures >= s.degradedAfter && !s.degraded
		if degradedNow {
			s.degraded = true
		}
		s.mu.Unlock()
		s.logger.Warn("conversation fetch failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		if degradedNow {
			s.publish(bus.KindSyncDegraded, conversationID)
		}
		return
	}

	if seq < ks.lastApplied {
		ks.phase = phaseIdle
		s.mu.Unlock()
		s.logger.Debug("discarding stale fetch result",
			zap.String("conversation_id", conversationID),
			zap.Uint64("seq", seq))
		return
	}
	ks.lastApplied = seq
	ks.phase = phaseApplying
	ks.failures = 0
	recovered := s.degraded && conversationID == s.active
	if recovered {
		s.degraded = false
	}
	s.mu.Unlock()

	s.rec.Apply(conversationID, window.Items, window.Meta)

	s.mu.Lock()
	ks.phase = phaseIdle
	s.mu.Unlock()

	if recovered {
		s.publish(bus.KindSyncRecovered, conversationID)
	}
}

// Degraded reports whether the console should show the persistent
// "could not refresh" indicator.
func (s *Scheduler) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Scheduler) fetchStats(ctx context.Context) {
	s.mu.Lock()
	if s.statsInFlight {
		s.mu.Unlock()
		return
	}
	s.statsInFlight = true
	s.mu.Unlock()

	stats, err := s.stats.LiveStats(ctx)

	s.mu.Lock()
	s.statsInFlight = false
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("live stats fetch failed", zap.Error(err))
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindStatsUpdated,
		Timestamp: time.Now(),
		Payload:   stats,
	})
}

// key expects s.mu held.
func (s *Scheduler) key(conversationID string) *keyState {
	ks, ok := s.keys[conversationID]
	if !ok {
		ks = &keyState{}
		s.keys[conversationID] = ks
	}
	return ks
}

func (s *Scheduler) publish(kind, conversationID string) {
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   conversationID,
	})
}
