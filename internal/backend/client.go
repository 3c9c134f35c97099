package backend

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the messaging backend over HTTP. All engine fetches and
// sends go through it; callers depend on the narrow interfaces they need.
type Client struct {
	http *resty.Client
}

// New creates a backend client for the given base URL. An empty apiKey
// skips the auth header.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &Client{http: c}
}

// ListConversations fetches one page of the conversation list, most recent
// activity first.
func (c *Client) ListConversations(ctx context.Context, filter string, pageSize, offset int) (*ConversationPage, error) {
	var page ConversationPage
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"filter": filter,
			"limit":  strconv.Itoa(pageSize),
			"offset": strconv.Itoa(offset),
		}).
		SetResult(&page).
		Get("/conversations")
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list conversations: backend returned %s", resp.Status())
	}
	return &page, nil
}

// GetMessages fetches the message window for a conversation. The backend
// is authoritative and returns the full relevant window, not a diff.
func (c *Client) GetMessages(ctx context.Context, conversationID string, windowSize int) (*MessageWindow, error) {
	var window MessageWindow
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(windowSize)).
		SetResult(&window).
		Get("/conversations/" + url.PathEscape(conversationID) + "/messages")
	if err != nil {
		return nil, fmt.Errorf("get messages %s: %w", conversationID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get messages %s: backend returned %s", conversationID, resp.Status())
	}
	for i := range window.Items {
		window.Items[i].ConversationID = conversationID
	}
	return &window, nil
}

// SendMessage asks the backend to deliver content to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID string, content Content) (*SendResult, error) {
	var result SendResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(content).
		SetResult(&result).
		Post("/conversations/" + url.PathEscape(conversationID) + "/messages")
	if err != nil {
		return nil, fmt.Errorf("send message %s: %w", conversationID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("send message %s: backend returned %s", conversationID, resp.Status())
	}
	return &result, nil
}

// SetModeration bans or unbans a conversation counterparty.
func (c *Client) SetModeration(ctx context.Context, conversationID string, banned bool, reason string) (bool, error) {
	var result struct {
		Success bool `json:"success"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"id":     conversationID,
			"banned": banned,
			"reason": reason,
		}).
		SetResult(&result).
		Post("/moderation")
	if err != nil {
		return false, fmt.Errorf("set moderation %s: %w", conversationID, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("set moderation %s: backend returned %s", conversationID, resp.Status())
	}
	return result.Success, nil
}

// LiveStats fetches the aggregate statistics snapshot.
func (c *Client) LiveStats(ctx context.Context) (*LiveStats, error) {
	var stats LiveStats
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&stats).
		Get("/live-stats")
	if err != nil {
		return nil, fmt.Errorf("live stats: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("live stats: backend returned %s", resp.Status())
	}
	return &stats, nil
}
