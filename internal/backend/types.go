package backend

// Channel identifies the messaging platform a conversation lives on.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelMessenger Channel = "messenger"
	ChannelTelegram  Channel = "telegram"
	ChannelInstagram Channel = "instagram"
)

// ContentType tags a message payload.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentVideo    ContentType = "video"
	ContentAudio    ContentType = "audio"
	ContentDocument ContentType = "document"
	ContentSticker  ContentType = "sticker"
	ContentReaction ContentType = "reaction"
)

// DeliveryStatus is the delivery state of a message. Server states only
// move forward (sent -> delivered -> read). Pending and failed are local
// states for optimistic entries the backend has not confirmed.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusFailed    DeliveryStatus = "failed"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

var statusRank = map[DeliveryStatus]int{
	StatusPending:   0,
	StatusFailed:    0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// MergeStatus returns the more advanced of two delivery states, so a
// later poll can never move a message's status backward.
func MergeStatus(old, incoming DeliveryStatus) DeliveryStatus {
	if statusRank[incoming] >= statusRank[old] {
		return incoming
	}
	return old
}

// Conversation is one thread in the operator's list, refreshed wholesale
// on every list fetch.
type Conversation struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Channel      Channel `json:"channel"`
	LastMessage  string  `json:"last_message"`
	LastActivity int64   `json:"last_activity_ms"`
	UnreadCount  int     `json:"unread_count"`
	IsGroup      bool    `json:"is_group"`
	Banned       bool    `json:"banned"`
	AvatarURL    string  `json:"avatar_url"`
}

// Content is a message payload: text, or a media reference with a type tag.
type Content struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	MediaURL string      `json:"media_url,omitempty"`
}

// Message is one message within a conversation. The identifier is unique
// within its conversation only. Pending marks a locally constructed
// optimistic entry awaiting server confirmation.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderName     string         `json:"sender_name,omitempty"`
	FromMe         bool           `json:"from_me"`
	Content        Content        `json:"content"`
	Status         DeliveryStatus `json:"status"`
	Timestamp      int64          `json:"timestamp_ms"`
	Pending        bool           `json:"-"`
}

// ConversationMeta is the channel metadata stored alongside a cached
// message list.
type ConversationMeta struct {
	Name    string  `json:"name"`
	Channel Channel `json:"channel"`
	IsGroup bool    `json:"is_group"`
	Banned  bool    `json:"banned"`
}

// ConversationPage is one page of the conversation list.
type ConversationPage struct {
	Items []Conversation `json:"items"`
	Total int            `json:"total"`
}

// MessageWindow is the full relevant message window for one conversation.
type MessageWindow struct {
	Items []Message        `json:"items"`
	Meta  ConversationMeta `json:"conversation_meta"`
}

// SendResult is the backend's answer to a send request.
type SendResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PlatformStats holds per-channel totals from the live-statistics feed.
type PlatformStats struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// LiveStats is the aggregate statistics snapshot polled for the status bar.
type LiveStats struct {
	TotalMessages       int                      `json:"total_messages"`
	TotalContacts       int                      `json:"total_contacts"`
	TotalChats          int                      `json:"total_chats"`
	ActiveConversations int                      `json:"active_conversations"`
	Platforms           map[string]PlatformStats `json:"platforms"`
	Connected           bool                     `json:"connected"`
	ConnectionStatus    string                   `json:"connection_status"`
}
