package state

import (
	"testing"
	"time"

	"memory-dashboard-be/pkg/conversation/session"

	"github.com/stretchr/testify/assert"
)

func msg(id, role, content string) Message {
	return Message{
		ID:        id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := New()
	s.Append(msg("m1", RoleUser, "hello"))
	s.Append(msg("m2", RoleAssistant, "hi there"))

	messages := s.Messages()
	if assert.Len(t, messages, 2) {
		assert.Equal(t, "m1", messages[0].ID)
		assert.Equal(t, "m2", messages[1].ID)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := New()
	s.Append(msg("m1", RoleUser, "hello"))

	out := s.Messages()
	out[0].Content = "mutated"

	assert.Equal(t, "hello", s.Messages()[0].Content)
}

func TestReplaceSwapsSessionAndHistory(t *testing.T) {
	s := New()
	s.SetSessionID(session.Persisted("s1"))
	s.Append(msg("m1", RoleUser, "old"))

	history := []Message{
		msg("h1", RoleUser, "earlier question"),
		msg("h2", RoleAssistant, "earlier answer"),
	}
	s.Replace(session.Persisted("s2"), history)

	remote, ok := s.SessionID().Remote()
	assert.True(t, ok)
	assert.Equal(t, "s2", remote)

	messages := s.Messages()
	if assert.Len(t, messages, 2) {
		assert.Equal(t, "h1", messages[0].ID)
		assert.Equal(t, "h2", messages[1].ID)
	}

	// Replace copied the slice; the caller's backing array is not shared.
	history[0].Content = "mutated"
	assert.Equal(t, "earlier question", s.Messages()[0].Content)
}

func TestReset(t *testing.T) {
	s := New()
	s.SetSessionID(session.Persisted("s1"))
	s.Append(msg("m1", RoleUser, "hello"))
	s.SetPending(true)

	s.Reset()

	assert.True(t, s.SessionID().IsZero())
	assert.Zero(t, s.Len())
	assert.False(t, s.Pending())
}
