package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"memory-dashboard-be/internal/constant"
	"memory-dashboard-be/internal/dto"
	"memory-dashboard-be/internal/pkg/logger"
	"memory-dashboard-be/pkg/agent"
	"memory-dashboard-be/pkg/conversation/degraded"
	"memory-dashboard-be/pkg/conversation/registry"
	"memory-dashboard-be/pkg/conversation/session"
	"memory-dashboard-be/pkg/conversation/state"
	"memory-dashboard-be/pkg/memstore"

	"github.com/google/uuid"
)

var (
	// ErrBusy: a send is already in flight on this surface. The second call
	// is ignored, not queued.
	ErrBusy = errors.New("a message is already being processed")
	// ErrEmptyMessage: nothing to send after trimming.
	ErrEmptyMessage = errors.New("message is empty")
)

// IChatService is the single entry point for the conversational session
// lifecycle of one UI surface: send, switch, delete, new conversation.
type IChatService interface {
	SendMessage(ctx context.Context, text string) (*dto.SendMessageResponse, error)
	EnsureSession(ctx context.Context, titleSeed string) session.ID
	SwitchSession(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	StartNewConversation() error
	Sessions(ctx context.Context) []session.Session
	State() *dto.ConversationStateResponse
	Notice() *degraded.Notice
	DismissNotice()
}

// chatService owns exactly one ConversationState and one registry. Instances
// are per (user, surface); nothing here is shared across surfaces.
type chatService struct {
	userID   string
	store    memstore.Store
	agent    agent.Provider
	persist  IPersistPublisher
	detector *degraded.Detector
	logger   logger.ILogger

	// mu guards state and registry mutations; busy serializes sends. The busy
	// flag is checked at call entry so programmatic re-entry is blocked, not
	// just a disabled button.
	mu       sync.Mutex
	busy     atomic.Bool
	state    *state.ConversationState
	registry *registry.Registry
}

func NewChatService(
	userID string,
	store memstore.Store,
	agentProvider agent.Provider,
	persist IPersistPublisher,
	detector *degraded.Detector,
	log logger.ILogger,
) IChatService {
	return &chatService{
		userID:   userID,
		store:    store,
		agent:    agentProvider,
		persist:  persist,
		detector: detector,
		logger:   log,
		state:    state.New(),
		registry: registry.New(),
	}
}

// SendMessage appends the user turn, asks the agent for an answer, and
// appends exactly one assistant turn (real or fallback). After it settles the
// conversation is always two messages longer, unless the input was rejected
// by the guards, in which case nothing changed.
func (s *chatService) SendMessage(ctx context.Context, text string) (*dto.SendMessageResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	s.state.SetPending(true)
	s.mu.Unlock()

	// Session resolution may hit the network; the lock stays free so state
	// reads on this surface remain responsive during the round-trip.
	sid := s.EnsureSession(ctx, text)

	userMsg := state.Message{
		ID:        uuid.NewString(),
		SessionID: sid.String(),
		Role:      constant.ChatMessageRoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.state.Append(userMsg)
	s.mu.Unlock()

	// Local append happens-before the persist attempt; completion of the
	// persist is never awaited.
	s.enqueuePersist(sid, userMsg)

	// Ephemeral sessions pass a null conversation reference: their local id
	// must not leak to the answer endpoint.
	var conversationID *string
	if remote, ok := sid.Remote(); ok {
		conversationID = &remote
	}

	answer, err := s.agent.Answer(ctx, s.userID, text, conversationID)

	reply := state.Message{
		ID:        uuid.NewString(),
		SessionID: sid.String(),
		Role:      constant.ChatMessageRoleAssistant,
		CreatedAt: time.Now(),
	}
	if err != nil {
		s.logger.Warn("ChatService", "Answer request failed, using fallback reply", map[string]interface{}{
			"error":      err.Error(),
			"session_id": sid.String(),
		})
		reply.Content = constant.FallbackAssistantReply
	} else {
		reply.Content = answer.Content
		reply.FollowUps = answer.FollowUps
		reply.Confidence = answer.Confidence
		for _, m := range answer.MemoriesUsed {
			reply.Evidence = append(reply.Evidence, state.Evidence{
				MemoryID: m.ID,
				Title:    m.Title,
				Snippet:  m.Snippet,
				Score:    m.Score,
			})
		}
		if answer.MessageID != "" {
			reply.ID = answer.MessageID
		}
	}

	s.mu.Lock()
	s.state.Append(reply)
	s.state.SetPending(false)
	s.mu.Unlock()

	s.enqueuePersist(sid, reply)

	// Assistant append happens-before the registry refresh, so the refreshed
	// recency ordering already reflects this exchange.
	s.refreshRegistry(ctx)

	return &dto.SendMessageResponse{
		SessionID: sid.String(),
		Ephemeral: sid.IsEphemeral(),
		Sent:      userMsg,
		Reply:     reply,
		Notice:    s.detector.Current(),
	}, nil
}

// EnsureSession makes sure a session exists, creating one remotely or, when
// the store cannot, synthesizing an ephemeral one. Idempotent: an existing
// session is returned untouched. The store call runs outside the state lock.
func (s *chatService) EnsureSession(ctx context.Context, titleSeed string) session.ID {
	s.mu.Lock()
	sid := s.state.SessionID()
	s.mu.Unlock()
	if !sid.IsZero() {
		return sid
	}

	sid = s.resolveSession(ctx, titleSeed)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another caller may have bound a session during the round-trip; the
	// first binding wins.
	if cur := s.state.SessionID(); !cur.IsZero() {
		return cur
	}
	s.state.SetSessionID(sid)
	return sid
}

func (s *chatService) resolveSession(ctx context.Context, titleSeed string) session.ID {
	record, err := s.store.CreateSession(ctx, s.userID, session.DeriveTitle(titleSeed))
	if err != nil {
		reason := s.detector.Raise(err, "Conversation history is unavailable right now. This chat will not be saved.")
		s.logger.Warn("ChatService", "Session creation degraded to ephemeral", map[string]interface{}{
			"error":  err.Error(),
			"reason": string(reason),
		})
		return session.NewEphemeral()
	}
	return session.Persisted(record.ID)
}

// SwitchSession replaces the conversation wholesale with a persisted
// session's history. A failed load leaves the current state untouched:
// switching is navigation, not a critical write.
func (s *chatService) SwitchSession(ctx context.Context, sessionID string) error {
	if s.busy.Load() {
		return ErrBusy
	}

	// Switching targets store-owned sessions only; an ephemeral id has no
	// history to load and must not reach the store.
	sid := session.Parse(sessionID)
	remote, ok := sid.Remote()
	if !ok {
		return fmt.Errorf("session %q has no stored history", sessionID)
	}

	records, err := s.store.ListMessages(ctx, s.userID, remote)
	if err != nil {
		s.logger.Warn("ChatService", "Session switch aborted, keeping current state", map[string]interface{}{
			"error":      err.Error(),
			"session_id": sessionID,
		})
		return err
	}

	history := make([]state.Message, 0, len(records))
	for _, rec := range records {
		msg := state.Message{
			ID:         rec.ID,
			SessionID:  rec.SessionID,
			Role:       rec.Role,
			Content:    rec.Content,
			Confidence: rec.Confidence,
			CreatedAt:  rec.CreatedAt,
		}
		for _, src := range rec.Sources {
			msg.Evidence = append(msg.Evidence, state.Evidence{
				MemoryID: src.MemoryID,
				Title:    src.Title,
				Snippet:  src.Snippet,
				Score:    src.Score,
			})
		}
		history = append(history, msg)
	}

	s.mu.Lock()
	s.state.Replace(sid, history)
	s.mu.Unlock()
	return nil
}

// DeleteSession removes a session remotely (best-effort) and locally. When
// the active session dies, the surface falls back to an empty conversation.
func (s *chatService) DeleteSession(ctx context.Context, sessionID string) error {
	if s.busy.Load() {
		return ErrBusy
	}

	s.mu.Lock()
	active := s.state.SessionID()
	s.mu.Unlock()

	// Ephemeral sessions were never persisted: their parsed ID has no remote
	// form, so there is nothing to delete at the store.
	if remote, ok := session.Parse(sessionID).Remote(); ok {
		if err := s.store.DeleteSession(ctx, s.userID, remote); err != nil {
			s.logger.Warn("ChatService", "Session delete failed remotely, registry refresh will reflect server state", map[string]interface{}{
				"error":      err.Error(),
				"session_id": sessionID,
			})
		}
	}

	s.refreshRegistry(ctx)

	if active.String() == sessionID {
		return s.StartNewConversation()
	}
	return nil
}

// StartNewConversation clears the surface back to the initial empty state.
func (s *chatService) StartNewConversation() error {
	if s.busy.Load() {
		return ErrBusy
	}
	s.mu.Lock()
	s.state.Reset()
	s.mu.Unlock()
	return nil
}

// Sessions refreshes the registry and returns it in display order.
func (s *chatService) Sessions(ctx context.Context) []session.Session {
	s.refreshRegistry(ctx)
	sessions := make([]session.Session, 0, s.registry.Len())
	for sess := range s.registry.OrderedForDisplay() {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (s *chatService) State() *dto.ConversationStateResponse {
	s.mu.Lock()
	sid := s.state.SessionID()
	resp := &dto.ConversationStateResponse{
		SessionID: sid.String(),
		Ephemeral: sid.IsEphemeral(),
		Pending:   s.state.Pending(),
		Messages:  s.state.Messages(),
	}
	s.mu.Unlock()
	resp.Notice = s.detector.Current()
	return resp
}

func (s *chatService) Notice() *degraded.Notice {
	return s.detector.Current()
}

func (s *chatService) DismissNotice() {
	s.detector.Clear()
}

// enqueuePersist fires a best-effort persist for sessions the store knows
// about. Ephemeral sessions are skipped entirely.
func (s *chatService) enqueuePersist(sid session.ID, msg state.Message) {
	remote, ok := sid.Remote()
	if !ok {
		return
	}

	req := memstore.AppendMessageRequest{
		Role:       msg.Role,
		Content:    msg.Content,
		Confidence: msg.Confidence,
	}
	for _, ev := range msg.Evidence {
		req.Sources = append(req.Sources, memstore.SourceRecord{
			MemoryID: ev.MemoryID,
			Title:    ev.Title,
			Snippet:  ev.Snippet,
			Score:    ev.Score,
		})
	}
	s.persist.EnqueueAppend(s.userID, remote, req)
}

// refreshRegistry replaces the registry from the store. Listing is read-only
// and non-critical: failures are logged and leave the previous contents (and
// the degraded flag) untouched.
func (s *chatService) refreshRegistry(ctx context.Context) {
	records, err := s.store.ListSessions(ctx, s.userID)
	if err != nil {
		s.logger.Warn("ChatService", "Registry refresh failed, keeping previous snapshot", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	sessions := make([]session.Session, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, session.Session{
			ID:        rec.ID,
			Title:     rec.Title,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
			Archived:  rec.Archived,
		})
	}
	s.registry.Replace(sessions)
}
