package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the engine.
const (
	// KindCacheUpdated fires after a reconciled message batch changed a
	// conversation's cache entry. Payload: CacheUpdate.
	KindCacheUpdated = "cache.updated"
	// KindListUpdated fires after the paginated conversation list changed.
	// Payload: ListUpdate.
	KindListUpdated = "list.updated"
	// KindStatsUpdated fires after a live-statistics poll. Payload is the
	// fetched stats snapshot.
	KindStatsUpdated = "stats.updated"
	// KindSyncDegraded fires when enough consecutive polls failed that the
	// console should show a "could not refresh" indicator.
	KindSyncDegraded = "sync.degraded"
	// KindSyncRecovered fires on the first successful poll after degradation.
	KindSyncRecovered = "sync.recovered"
	// KindSendQueued fires when an optimistic message enters the journal.
	// Payload: SendUpdate.
	KindSendQueued = "send.queued"
	// KindSendAck fires when the backend accepted a queued message.
	// Payload: SendUpdate.
	KindSendAck = "send.ack"
	// KindSendFailed fires when a queued message could not be delivered.
	// Payload: SendUpdate.
	KindSendFailed = "send.failed"
)

// CacheUpdate describes how a conversation's cached message list changed.
type CacheUpdate struct {
	ConversationID string
	PrevCount      int
	NewCount       int
	// NewestFromMe is true when the newest appended message is the
	// operator's own.
	NewestFromMe bool
}

// ListUpdate describes a conversation-list refresh.
type ListUpdate struct {
	Count   int
	HasMore bool
	// Replaced is true for a first-page reload, false for an appended page.
	Replaced bool
}

// SendUpdate describes the progress of one queued outbound message.
type SendUpdate struct {
	ClientID       string
	ConversationID string
	Error          string
}
