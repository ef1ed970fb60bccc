package state

import (
	"time"

	"memory-dashboard-be/pkg/conversation/session"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Evidence points at a knowledge item that supported an assistant answer.
type Evidence struct {
	MemoryID string  `json:"memory_id"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"relevance_score,omitempty"`
}

// Message is one turn of a conversation. Messages are append-only: once in a
// ConversationState they are never edited, reordered, or removed one by one.
type Message struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Evidence   []Evidence `json:"evidence,omitempty"`
	FollowUps  []string   `json:"follow_up_questions,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ConversationState holds the active session and its ordered message
// sequence. Exactly one instance is active per UI surface; switching sessions
// replaces the whole thing, never merges.
type ConversationState struct {
	sessionID session.ID
	messages  []Message
	pending   bool
}

func New() *ConversationState {
	return &ConversationState{}
}

func (s *ConversationState) SessionID() session.ID {
	return s.sessionID
}

// SetSessionID binds the state to a session. Used only for lazy creation on
// first send; established conversations change sessions via Replace.
func (s *ConversationState) SetSessionID(id session.ID) {
	s.sessionID = id
}

// Append adds a message at the end. Ordering by creation time is preserved
// because appends only happen for newly created messages.
func (s *ConversationState) Append(msg Message) {
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the message sequence so callers cannot mutate
// history behind the state's back.
func (s *ConversationState) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ConversationState) Len() int {
	return len(s.messages)
}

func (s *ConversationState) Pending() bool {
	return s.pending
}

func (s *ConversationState) SetPending(pending bool) {
	s.pending = pending
}

// Replace swaps in a different session and its full history. Switching always
// targets a persisted session, so id comes from the store.
func (s *ConversationState) Replace(id session.ID, history []Message) {
	msgs := make([]Message, len(history))
	copy(msgs, history)
	s.sessionID = id
	s.messages = msgs
}

// Reset returns the state to its initial empty shape: no session, no
// messages. Used by new-conversation and delete-of-active.
func (s *ConversationState) Reset() {
	s.sessionID = session.ID{}
	s.messages = nil
	s.pending = false
}
