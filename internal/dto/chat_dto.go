package dto

import (
	"memory-dashboard-be/pkg/conversation/degraded"
	"memory-dashboard-be/pkg/conversation/session"
	"memory-dashboard-be/pkg/conversation/state"
	"memory-dashboard-be/pkg/memstore"
)

type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

type SendMessageResponse struct {
	SessionID string           `json:"session_id"`
	Ephemeral bool             `json:"ephemeral"`
	Sent      state.Message    `json:"sent"`
	Reply     state.Message    `json:"reply"`
	Notice    *degraded.Notice `json:"notice,omitempty"`
}

type ConversationStateResponse struct {
	SessionID string           `json:"session_id,omitempty"`
	Ephemeral bool             `json:"ephemeral"`
	Pending   bool             `json:"pending"`
	Messages  []state.Message  `json:"messages"`
	Notice    *degraded.Notice `json:"notice,omitempty"`
}

type SessionListResponse struct {
	Sessions []session.Session `json:"sessions"`
}

// PersistMessageJob travels over the event bus from the chat service to the
// persistence consumer. SessionID is always a remote identifier; jobs are
// never enqueued for ephemeral sessions.
type PersistMessageJob struct {
	UserID    string                        `json:"user_id"`
	SessionID string                        `json:"session_id"`
	Message   memstore.AppendMessageRequest `json:"message"`
}
