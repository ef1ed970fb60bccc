package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Store is the contract of the remote conversation store. The gateway treats
// the store as a black box: only this surface matters.
type Store interface {
	CreateSession(ctx context.Context, userID, title string) (*SessionRecord, error)
	ListSessions(ctx context.Context, userID string) ([]SessionRecord, error)
	ListMessages(ctx context.Context, userID, sessionID string) ([]MessageRecord, error)
	AppendMessage(ctx context.Context, userID, sessionID string, msg AppendMessageRequest) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// SessionRecord mirrors the store's session resource.
type SessionRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Archived  bool      `json:"is_archived"`
}

// SourceRecord is one supporting-evidence entry as the store persists it
// (wire field name "sources" on messages).
type SourceRecord struct {
	MemoryID string  `json:"memory_id"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"relevance_score,omitempty"`
}

// MessageRecord mirrors the store's message resource.
type MessageRecord struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Sources    []SourceRecord `json:"sources,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type AppendMessageRequest struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Sources    []SourceRecord `json:"sources,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
}

type createSessionRequest struct {
	Title string `json:"title"`
}

// StatusError is a non-2xx response from the store. Code 503 means the store
// reported its persistence layer is not configured.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memory store returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int {
	return e.Code
}

// SuccessObserver is notified after every successful store round-trip. The
// degraded-mode detector hangs off this to clear its flag implicitly.
type SuccessObserver interface {
	OnStoreSuccess()
}

// Client talks to the remote conversation store over REST. The user identity
// header is opaque to the client and simply forwarded on every request.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	observer SuccessObserver
}

var _ Store = &Client{}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Observe registers the success observer. Pass nil to detach.
func (c *Client) Observe(obs SuccessObserver) {
	c.observer = obs
}

func (c *Client) CreateSession(ctx context.Context, userID, title string) (*SessionRecord, error) {
	var record SessionRecord
	err := c.do(ctx, http.MethodPost, "/chat/sessions", userID, createSessionRequest{Title: title}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	var records []SessionRecord
	if err := c.do(ctx, http.MethodGet, "/chat/sessions", userID, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) ListMessages(ctx context.Context, userID, sessionID string) ([]MessageRecord, error) {
	var records []MessageRecord
	path := fmt.Sprintf("/chat/sessions/%s/messages", sessionID)
	if err := c.do(ctx, http.MethodGet, path, userID, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) AppendMessage(ctx context.Context, userID, sessionID string, msg AppendMessageRequest) error {
	path := fmt.Sprintf("/chat/sessions/%s/messages", sessionID)
	return c.do(ctx, http.MethodPost, path, userID, msg, nil)
}

func (c *Client) DeleteSession(ctx context.Context, userID, sessionID string) error {
	path := fmt.Sprintf("/chat/sessions/%s", sessionID)
	return c.do(ctx, http.MethodDelete, path, userID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, userID string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-User-Id", userID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if c.observer != nil {
		c.observer.OnStoreSuccess()
	}
	return nil
}
