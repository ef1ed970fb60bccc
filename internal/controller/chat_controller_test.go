package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"memory-dashboard-be/internal/dto"
	"memory-dashboard-be/internal/pkg/serverutils"
	"memory-dashboard-be/internal/repository/memory"
	"memory-dashboard-be/internal/service"
	"memory-dashboard-be/pkg/conversation/degraded"
	"memory-dashboard-be/pkg/conversation/session"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatService struct {
	mu          sync.Mutex
	sendErr     error
	sendCalls   []string
	switched    []string
	deleted     []string
	newCalls    int
	dismissed   int
	stateResult dto.ConversationStateResponse
}

func (s *stubChatService) SendMessage(_ context.Context, text string) (*dto.SendMessageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCalls = append(s.sendCalls, text)
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &dto.SendMessageResponse{SessionID: "s1"}, nil
}

func (s *stubChatService) EnsureSession(context.Context, string) session.ID {
	return session.Persisted("s1")
}

func (s *stubChatService) SwitchSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switched = append(s.switched, sessionID)
	return nil
}

func (s *stubChatService) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, sessionID)
	return nil
}

func (s *stubChatService) StartNewConversation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newCalls++
	return nil
}

func (s *stubChatService) Sessions(context.Context) []session.Session {
	return []session.Session{{ID: "s1", Title: "first"}}
}

func (s *stubChatService) State() *dto.ConversationStateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := s.stateResult
	return &resp
}

func (s *stubChatService) Notice() *degraded.Notice { return nil }

func (s *stubChatService) DismissNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed++
}

type testHarness struct {
	app     *fiber.App
	stubs   map[string]*stubChatService
	stubsMu sync.Mutex
	factory int
}

func newHarness(t *testing.T) *testHarness {
	t.Setenv("JWT_SECRET", "test-secret")

	h := &testHarness{stubs: make(map[string]*stubChatService)}

	surfaces := memory.NewSurfaceRepository(time.Hour)
	ctrl := NewChatController(surfaces, func(userID, surfaceKey string) service.IChatService {
		h.stubsMu.Lock()
		defer h.stubsMu.Unlock()
		h.factory++
		stub := &stubChatService{}
		h.stubs[surfaceKey] = stub
		return stub
	})

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	ctrl.RegisterRoutes(app.Group("/api"))
	h.app = app
	return h
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func (h *testHarness) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSendMessageRequiresToken(t *testing.T) {
	h := newHarness(t)

	resp := h.request(t, http.MethodPost, "/api/chat/v1/message", "", dto.SendMessageRequest{Message: "hi"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, h.factory)
}

func TestSendMessageRoutesToSurfaceService(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	resp := h.request(t, http.MethodPost, "/api/chat/v1/message", token, dto.SendMessageRequest{Message: "hello"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope serverutils.APIResponse[dto.SendMessageResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "s1", envelope.Data.SessionID)

	stub := h.stubs["user-1:default"]
	require.NotNil(t, stub)
	assert.Equal(t, []string{"hello"}, stub.sendCalls)
}

func TestSendMessageValidation(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	resp := h.request(t, http.MethodPost, "/api/chat/v1/message", token, dto.SendMessageRequest{Message: ""})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSendMessageBusyMapsToConflict(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	// Prime the surface so we can arm its stub.
	h.request(t, http.MethodGet, "/api/chat/v1/state", token, nil)
	stub := h.stubs["user-1:default"]
	require.NotNil(t, stub)
	stub.sendErr = service.ErrBusy

	resp := h.request(t, http.MethodPost, "/api/chat/v1/message", token, dto.SendMessageRequest{Message: "hello"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestSurfacesAreIsolatedPerHeader(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/chat/v1/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Surface-Id", "panel-a")
	_, err := h.app.Test(req, -1)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/chat/v1/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Surface-Id", "panel-b")
	_, err = h.app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, 2, h.factory)
	assert.NotNil(t, h.stubs["user-1:panel-a"])
	assert.NotNil(t, h.stubs["user-1:panel-b"])
}

func TestSurfaceServiceIsReusedAcrossRequests(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	h.request(t, http.MethodGet, "/api/chat/v1/state", token, nil)
	h.request(t, http.MethodGet, "/api/chat/v1/state", token, nil)

	assert.Equal(t, 1, h.factory)
}

func TestActivateAndDeleteRoutes(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	resp := h.request(t, http.MethodPost, "/api/chat/v1/sessions/s2/activate", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = h.request(t, http.MethodDelete, "/api/chat/v1/sessions/s2", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stub := h.stubs["user-1:default"]
	require.NotNil(t, stub)
	assert.Equal(t, []string{"s2"}, stub.switched)
	assert.Equal(t, []string{"s2"}, stub.deleted)
}

func TestNewConversationAndDismissRoutes(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	resp := h.request(t, http.MethodPost, "/api/chat/v1/new", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = h.request(t, http.MethodPost, "/api/chat/v1/notice/dismiss", token, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stub := h.stubs["user-1:default"]
	require.NotNil(t, stub)
	assert.Equal(t, 1, stub.newCalls)
	assert.Equal(t, 1, stub.dismissed)
}

func TestSessionsRoute(t *testing.T) {
	h := newHarness(t)
	token := signToken(t, "user-1")

	resp := h.request(t, http.MethodGet, "/api/chat/v1/sessions", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope serverutils.APIResponse[dto.SessionListResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Sessions, 1)
	assert.Equal(t, "s1", envelope.Data.Sessions[0].ID)
}
