package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is the remote answer collaborator. Generation itself is out of
// this repository's hands; only the request/response shape matters.
type Provider interface {
	Answer(ctx context.Context, userID, message string, conversationID *string) (*Answer, error)
}

// MemoryUsed is one knowledge item the agent drew on for an answer.
type MemoryUsed struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"relevance_score,omitempty"`
}

// Answer is the agent's reply to one user turn.
type Answer struct {
	ConversationID string       `json:"conversation_id,omitempty"`
	MessageID      string       `json:"message_id,omitempty"`
	Content        string       `json:"content"`
	MemoriesUsed   []MemoryUsed `json:"memories_used,omitempty"`
	FollowUps      []string     `json:"follow_up_questions,omitempty"`
	Confidence     *float64     `json:"confidence,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
	// ConversationID is null for ephemeral sessions: a local identifier must
	// never leak to the agent as conversation context.
	ConversationID *string `json:"conversation_id"`
}

// Client calls the agent answer endpoint over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ Provider = &Client{}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *Client) Answer(ctx context.Context, userID, message string, conversationID *string) (*Answer, error) {
	raw, err := json.Marshal(chatRequest{Message: message, ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/agent/chat", bytes.NewBuffer(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", userID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(body))
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &answer, nil
}
