package outbox

import (
	"context"
	"time"

	"botboard/internal/backend"
	"botboard/internal/bus"
	"botboard/internal/cache"
	"botboard/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageSender is the backend surface used to deliver queued messages.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID string, content backend.Content) (*backend.SendResult, error)
}

// Nudger forces a reconciling fetch for a conversation. Implemented by the
// sync scheduler.
type Nudger interface {
	Nudge(ctx context.Context, conversationID string)
}

// reconcileDelay bounds how long after a successful send the forced
// reconciling fetch runs.
const reconcileDelay = time.Second

// Sender drains the send journal and delivers messages to the backend.
// Every send is optimistic: the message appears in the cache immediately
// with a locally generated identifier, and a later reconciled fetch either
// replaces it with the server copy or leaves it visible as unconfirmed.
type Sender struct {
	db     *store.DB
	send   MessageSender
	rec    *cache.Reconciler
	nudge  Nudger
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates an outbox sender.
func NewSender(db *store.DB, send MessageSender, rec *cache.Reconciler, nudge Nudger, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		send:   send,
		rec:    rec,
		nudge:  nudge,
		bus:    b,
		logger: logger,
	}
}

// Enqueue journals an outbound text message and inserts its optimistic
// entry into the cache. Returns the locally generated client identifier.
func (s *Sender) Enqueue(conversationID, text string) (string, error) {
	clientID := uuid.New().String()
	if err := s.db.Enqueue(clientID, conversationID, text); err != nil {
		return "", err
	}

	s.rec.AppendLocal(conversationID, backend.Message{
		ID:             clientID,
		ConversationID: conversationID,
		FromMe:         true,
		Content:        backend.Content{Type: backend.ContentText, Text: text},
		Status:         backend.StatusPending,
		Timestamp:      time.Now().UnixMilli(),
	})

	s.publish(bus.KindSendQueued, clientID, conversationID, "")
	return clientID, nil
}

// Start restores journaled sends from a previous run into the cache and
// begins draining the journal.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.restoreLocal()
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// restoreLocal re-inserts optimistic entries for journal rows left over
// from a previous console run.
func (s *Sender) restoreLocal() {
	pending, err := s.db.Pending()
	if err != nil {
		s.logger.Error("failed to read send journal", zap.Error(err))
		return
	}
	for _, entry := range pending {
		ts := entry.CreatedAt
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		s.rec.AppendLocal(entry.ConversationID, backend.Message{
			ID:             entry.ClientMsgID,
			ConversationID: entry.ConversationID,
			FromMe:         true,
			Content:        backend.Content{Type: backend.ContentText, Text: entry.Body},
			Status:         backend.StatusPending,
			Timestamp:      ts,
		})
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.Pending()
	if err != nil {
		s.logger.Error("failed to read send journal", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		content := backend.Content{Type: backend.ContentText, Text: entry.Body}
		result, err := s.send.SendMessage(ctx, entry.ConversationID, content)
		if err == nil && !result.Success {
			err = sendError(result.Error)
		}
		if err != nil {
			s.logger.Warn("message send failed",
				zap.Error(err),
				zap.String("client_msg_id", entry.ClientMsgID),
				zap.String("conversation_id", entry.ConversationID))
			_ = s.db.MarkFailed(entry.ClientMsgID, err.Error())
			// The optimistic entry stays visible with a failed marker.
			s.rec.SetLocalStatus(entry.ConversationID, entry.ClientMsgID, backend.StatusFailed)
			s.publish(bus.KindSendFailed, entry.ClientMsgID, entry.ConversationID, err.Error())
			continue
		}

		if err := s.db.MarkSent(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.rec.SetLocalStatus(entry.ConversationID, entry.ClientMsgID, backend.StatusSent)
		s.publish(bus.KindSendAck, entry.ClientMsgID, entry.ConversationID, "")

		// Force a reconciling fetch so the server copy replaces the
		// optimistic entry within a bounded window.
		if s.nudge != nil {
			conversationID := entry.ConversationID
			time.AfterFunc(reconcileDelay, func() {
				s.nudge.Nudge(ctx, conversationID)
			})
		}
	}
}

func (s *Sender) publish(kind, clientID, conversationID, errMsg string) {
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload: bus.SendUpdate{
			ClientID:       clientID,
			ConversationID: conversationID,
			Error:          errMsg,
		},
	})
}

type sendError string

func (e sendError) Error() string {
	if e == "" {
		return "backend rejected message"
	}
	return string(e)
}
